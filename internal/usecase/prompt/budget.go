package prompt

import (
	"unicode/utf8"

	"github.com/kailas-cloud/shortlist/internal/usecase/rank"
)

// Budget bounds what reaches the prompt. Zero fields are unlimited.
type Budget struct {
	MaxDocuments int
	MaxChars     int // total runes of document text
}

// Apply keeps the longest rank-order prefix of candidates that fits the budget
// and reports how many were left out. Documents are dropped whole, lowest
// ranked first; text is never cut.
func (b Budget) Apply(candidates []rank.Candidate) (kept []rank.Candidate, omitted int) {
	n := len(candidates)
	if b.MaxDocuments > 0 && n > b.MaxDocuments {
		n = b.MaxDocuments
	}

	if b.MaxChars > 0 {
		total := 0
		for i := range n {
			total += utf8.RuneCountInString(candidates[i].Record.Text())
			if total > b.MaxChars {
				n = i
				break
			}
		}
	}

	return candidates[:n], len(candidates) - n
}
