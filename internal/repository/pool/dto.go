package pool

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
)

// recordDTO is the persisted form shared by the hash and bucket backends.
type recordDTO struct {
	Name      string  `json:"name"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Embedding []byte  `json:"embedding"` // vector.Encode
}

// ordinalField renders an ordinal as a fixed-width key so lexical order matches pool order.
func ordinalField(ordinal int) string {
	return fmt.Sprintf("%08d", ordinal)
}

func parseOrdinal(field string) (int, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("invalid ordinal field %q: %w", field, err)
	}
	return n, nil
}

func encodeRecord(r record.Record) ([]byte, error) {
	data, err := json.Marshal(recordDTO{
		Name:      r.Name(),
		Text:      r.Text(),
		Score:     r.Score(),
		Embedding: vector.Encode(r.Embedding()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal record %d: %w", r.Ordinal(), err)
	}
	return data, nil
}

// decodeRecord never fails: an unreadable payload yields a record without an
// embedding, which the query path excludes when it validates dimensions.
func decodeRecord(ordinal int, data []byte) record.Record {
	var dto recordDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return record.Reconstruct(ordinal, "", "", 0, nil)
	}
	emb, err := vector.Decode(dto.Embedding)
	if err != nil {
		emb = nil
	}
	return record.Reconstruct(ordinal, dto.Name, dto.Text, dto.Score, emb)
}

// validateRecords rejects the whole write if any record is unfit for the pool.
func validateRecords(records []record.Record, dim int) error {
	for _, r := range records {
		if err := r.Validate(dim); err != nil {
			return fmt.Errorf("reject pool write: %w", err)
		}
	}
	return nil
}
