// Package scoring holds the Hand Shadda score vocabulary, the spoken-Arabic
// command parser built on it, and the fateet/winner resolver.
package scoring

// Values are the only legal round scores, in score-picker order
var Values = []int{-30, -60, 100, 200}

// IsValidScore reports whether n is a legal round score
func IsValidScore(n int) bool {
	for _, v := range Values {
		if v == n {
			return true
		}
	}
	return false
}

// alias maps one spoken form to its score
type alias struct {
	text  string
	score int
}

// aliases is scanned in order by Parse. Longer and more specific forms must
// come before anything that could match inside them.
var aliases = []alias{
	{"ناقص ثلاثين", -30},
	{"سالب ثلاثين", -30},
	{"ناقص تلاتين", -30},
	{"سالب تلاتين", -30},
	{"-30", -30},
	{"ناقص ستين", -60},
	{"سالب ستين", -60},
	{"-60", -60},
	{"ميتين", 200},
	{"مئتين", 200},
	{"200", 200},
	{"مية", 100},
	{"ميه", 100},
	{"مئة", 100},
	{"100", 100},
}

// Aliases returns the spoken forms of a score in table order
func Aliases(score int) []string {
	var out []string
	for _, a := range aliases {
		if a.score == score {
			out = append(out, a.text)
		}
	}
	return out
}
