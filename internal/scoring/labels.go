package scoring

import (
	"fmt"
	"strconv"
)

var scoreLabels = map[int]string{
	-30: "ناقص ٣٠",
	-60: "ناقص ٦٠",
	100: "+١٠٠",
	200: "+٢٠٠",
}

var rankLabels = map[int]string{
	1: "الأول",
	2: "الثاني",
	3: "الثالث",
	4: "الرابع",
}

// Label returns the score-picker label for a vocabulary value
func Label(score int) string {
	if l, ok := scoreLabels[score]; ok {
		return l
	}
	return strconv.Itoa(score)
}

// RankLabel returns the Arabic ordinal for a finishing position
func RankLabel(rank int) string {
	if l, ok := rankLabels[rank]; ok {
		return l
	}
	return strconv.Itoa(rank)
}

// FateetAnnouncement is the line spoken when a player becomes fateet
func FateetAnnouncement(name string) string {
	if name == "" {
		name = "اللاعب"
	}
	return fmt.Sprintf("يا فتيت %s، وفت منيح", name)
}

// VocabularyEntry describes one legal score for clients
type VocabularyEntry struct {
	Score   int      `json:"score"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases"`
}

// Vocabulary lists every legal score with its labels
func Vocabulary() []VocabularyEntry {
	out := make([]VocabularyEntry, 0, len(Values))
	for _, v := range Values {
		out = append(out, VocabularyEntry{
			Score:   v,
			Label:   Label(v),
			Aliases: Aliases(v),
		})
	}
	return out
}
