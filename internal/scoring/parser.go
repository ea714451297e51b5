package scoring

import "strings"

// Command is an utterance split into a name fragment and a score
type Command struct {
	PlayerNameFragment string
	Score              int
}

// Parse extracts a score and the name fragment around it from a transcript.
// It returns false when no alias matches or nothing is left for the name.
func Parse(raw string) (Command, bool) {
	input := strings.ToLower(strings.TrimSpace(raw))
	if input == "" {
		return Command{}, false
	}

	for _, a := range aliases {
		if !strings.Contains(input, a.text) {
			continue
		}
		name := strings.TrimSpace(strings.Replace(input, a.text, "", 1))
		if name == "" {
			return Command{}, false
		}
		return Command{PlayerNameFragment: name, Score: a.score}, true
	}
	return Command{}, false
}

// ResolvePlayer returns the index of the first player whose name contains
// the fragment or is contained in it, or -1 when nobody matches.
func ResolvePlayer(fragment string, names []string) int {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return -1
	}

	for i, n := range names {
		name := strings.ToLower(strings.TrimSpace(n))
		if name == "" {
			continue
		}
		if strings.Contains(name, fragment) || strings.Contains(fragment, name) {
			return i
		}
	}
	return -1
}
