package fetch

import (
	"context"
	"errors"

	"city-planner/backend/pkg/models"
)

// Searcher is a live general-purpose web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// ErrNoResults is returned by a search tier that found nothing.
var ErrNoResults = errors.New("no search results")

type searchStrategy[P, T any] struct {
	searcher Searcher
	query    func(P) string
	build    func(P, []models.SearchResult) (T, error)
}

// SearchStrategy derives a query from the params, runs it and normalizes
// the hits with build. It is the fallback-live tier of an operation.
func SearchStrategy[P, T any](s Searcher, query func(P) string, build func(P, []models.SearchResult) (T, error)) Strategy[P, T] {
	return searchStrategy[P, T]{searcher: s, query: query, build: build}
}

func (s searchStrategy[P, T]) Name() string   { return "web-search" }
func (s searchStrategy[P, T]) Source() Source { return SourceSearch }

func (s searchStrategy[P, T]) Attempt(ctx context.Context, params P) (T, error) {
	var zero T
	hits, err := s.searcher.Search(ctx, s.query(params))
	if err != nil {
		return zero, err
	}
	if len(hits) == 0 {
		return zero, ErrNoResults
	}
	return s.build(params, hits)
}
