package service

import (
	"context"

	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/logger"
	"github.com/wyatt/creatorscout/internal/repository"
)

type queryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type profileSearcher interface {
	SearchProfiles(ctx context.Context, params repository.SearchParams) ([]domain.SearchHit, error)
}

// VectorSearchParams describes one search sweep over the expanded queries.
type VectorSearchParams struct {
	Queries      []string
	Platform     string
	MinFollowers *int64
	MaxFollowers *int64
}

// VectorSearchService fans each query out over the configured alpha weights
// against the vector index. Each query is embedded once; an embedding failure
// skips that query, a search failure skips that (query, alpha) pair. Neither
// aborts the sweep.
type VectorSearchService struct {
	embedder queryEmbedder
	searcher profileSearcher
	alphas   []float64
	limit    int
}

// NewVectorSearchService creates a new vector search service
func NewVectorSearchService(embedder *EmbeddingService, searcher *repository.QdrantRepository, cfg *config.PipelineConfig) *VectorSearchService {
	alphas := cfg.Alphas
	if len(alphas) == 0 {
		alphas = []float64{0.2, 0.5, 0.8}
	}
	limit := cfg.PerQueryLimit
	if limit < 1 {
		limit = 500
	}
	return &VectorSearchService{
		embedder: embedder,
		searcher: searcher,
		alphas:   alphas,
		limit:    limit,
	}
}

// Run executes the full (query x alpha) sweep and returns the merged raw
// hits. cancelled is polled before each query's alpha sweep; when it reports
// true the sweep stops and context.Canceled is returned with the hits
// gathered so far.
// Parameters:
//   - ctx: request context passed to every external call.
//   - params: queries and search filters.
//   - cancelled: cooperative cancellation checkpoint, may be nil.
// Returns:
//   - []domain.SearchHit: merged hits from all successful pairs.
//   - int: number of failed (query, alpha) pairs.
//   - error: context.Canceled when the checkpoint fired, nil otherwise.
func (s *VectorSearchService) Run(ctx context.Context, params VectorSearchParams, cancelled func(context.Context) bool) ([]domain.SearchHit, int, error) {
	var hits []domain.SearchHit
	failures := 0

	for _, query := range params.Queries {
		if cancelled != nil && cancelled(ctx) {
			return hits, failures, context.Canceled
		}

		vector, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			failures += len(s.alphas)
			logger.CtxWarn(ctx, "Query embedding failed, skipping query: query=%q, error=%v", query, err)
			continue
		}

		for _, alpha := range s.alphas {
			pairHits, err := s.searcher.SearchProfiles(ctx, repository.SearchParams{
				Query:        query,
				Vector:       vector,
				Alpha:        alpha,
				Limit:        s.limit,
				Platform:     params.Platform,
				MinFollowers: params.MinFollowers,
				MaxFollowers: params.MaxFollowers,
			})
			if err != nil {
				failures++
				logger.CtxWarn(ctx, "Vector search failed, skipping pair: query=%q, alpha=%.1f, error=%v", query, alpha, err)
				continue
			}
			hits = append(hits, pairHits...)
		}
	}
	return hits, failures, nil
}
