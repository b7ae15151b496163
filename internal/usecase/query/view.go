package query

import "github.com/kailas-cloud/shortlist/internal/usecase/rank"

func view(cands []rank.Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		out[i] = Candidate{
			Rank:      i + 1,
			Ordinal:   c.Record.Ordinal(),
			Name:      c.Record.Name(),
			Persisted: c.Record.Score(),
			Fresh:     c.Fresh,
			Fused:     c.Fused,
		}
	}
	return out
}
