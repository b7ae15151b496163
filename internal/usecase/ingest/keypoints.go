package ingest

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
	"github.com/kailas-cloud/shortlist/internal/logger"
)

//go:embed keypoints.md
var keyPointsTemplate string

func buildKeyPointsPrompt(jobDescription string) string {
	return strings.ReplaceAll(keyPointsTemplate, "{{JOB_DESCRIPTION}}", strings.TrimSpace(jobDescription))
}

// reference embeds the text every document is scored against and reports
// which policy produced it. Key points fall back to the raw job description
// when generation fails or returns nothing.
func (s *Service) reference(ctx context.Context, jobDescription string) (vector.Vector, string, error) {
	log := logger.FromContext(ctx)
	text, policy := jobDescription, PolicyDirect

	if s.policy == PolicyKeyPoints && s.gen != nil {
		summary, err := s.gen.Generate(ctx, buildKeyPointsPrompt(jobDescription))
		switch {
		case err != nil:
			log.Warn("Key point summary failed, scoring against the raw job description", zap.Error(err))
		case strings.TrimSpace(summary) == "":
			log.Warn("Key point summary is empty, scoring against the raw job description")
		default:
			text, policy = summary, PolicyKeyPoints
			log.Debug("Job description summarized", zap.Int("summary_len", len(summary)))
		}
	}

	res, err := s.refEmbed.Embed(ctx, text)
	if err != nil {
		return nil, policy, fmt.Errorf("embed reference text: %w", wrapEmbedding(err))
	}
	if s.dim > 0 && res.Embedding.Dim() != s.dim {
		return nil, policy, fmt.Errorf("reference embedding has %d dimensions, want %d: %w: %w",
			res.Embedding.Dim(), s.dim, domain.ErrEmbeddingFailure, domain.ErrDimensionMismatch)
	}
	if res.Embedding.Norm() == 0 {
		return nil, policy, fmt.Errorf("reference embedding: %w: %w", domain.ErrEmbeddingFailure, domain.ErrDegenerateVector)
	}
	return res.Embedding, policy, nil
}
