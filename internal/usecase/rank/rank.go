// Package rank re-ranks a pool against a query embedding by fusing each
// record's persisted score with a fresh query similarity.
package rank

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/domain/score"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
	"github.com/kailas-cloud/shortlist/internal/logger"
)

// Candidate is a record scored for one query.
type Candidate struct {
	Record   record.Record
	Fresh    float64 // query similarity on the common scale
	Fused    float64 // score.Fuse(persisted, fresh)
	Position int     // index in the input pool; ties keep this order
}

// Selection is the ranked top-N plus the count of records that could not be scored.
type Selection struct {
	Candidates []Candidate
	Excluded   int
}

// Ranker ranks pools by linear scan.
type Ranker struct {
	excluded prometheus.Counter
}

// New creates a Ranker. excluded may be nil.
func New(excluded prometheus.Counter) *Ranker {
	return &Ranker{excluded: excluded}
}

// Rank scores every record of pool against query and returns the first
// min(n, rankable) by descending fused score. Records whose embedding cannot be
// compared with the query are skipped and counted, never fatal.
func (r *Ranker) Rank(ctx context.Context, pool []record.Record, query vector.Vector, n int) Selection {
	if n <= 0 || len(pool) == 0 {
		return Selection{}
	}

	log := logger.FromContext(ctx)
	cands := make([]Candidate, 0, len(pool))
	excluded := 0

	for i, rec := range pool {
		fresh, err := score.Similarity(query, rec.Embedding())
		if err != nil {
			excluded++
			if r.excluded != nil {
				r.excluded.Inc()
			}
			log.Warn("Excluding record from ranking",
				zap.Int("ordinal", rec.Ordinal()),
				zap.String("name", rec.Name()),
				zap.Bool("dimension_mismatch", errors.Is(err, vector.ErrDimensionMismatch)),
				zap.Error(err),
			)
			continue
		}
		cands = append(cands, Candidate{
			Record:   rec,
			Fresh:    fresh,
			Fused:    score.Fuse(rec.Score(), fresh),
			Position: i,
		})
	}

	slices.SortStableFunc(cands, func(a, b Candidate) int {
		return cmp.Compare(b.Fused, a.Fused)
	})

	if len(cands) > n {
		cands = cands[:n]
	}
	return Selection{Candidates: cands, Excluded: excluded}
}
