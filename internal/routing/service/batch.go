package service

import (
	"context"
	"math"

	"leadrouter_backend/internal/routing/transport"

	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds parallel assignments inside one batch call. The
// real ceiling is the database pool; this just keeps a single large batch
// from monopolizing it.
const batchConcurrency = 4

// AssignBatch routes each lead in the request independently. One lead's
// failure never aborts the others: the per-item error is captured in its
// slot and processing continues.
func (s *Service) AssignBatch(ctx context.Context, req transport.BatchAssignRequest) (transport.BatchAssignResponse, error) {
	results := make([]transport.BatchItemResult, len(req.Leads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, item := range req.Leads {
		g.Go(func() error {
			resp, err := s.AssignLead(gctx, item)
			if err != nil {
				msg := err.Error()
				results[i] = transport.BatchItemResult{Index: i, Error: &msg}
				return nil
			}
			results[i] = transport.BatchItemResult{Index: i, Assignment: &resp}
			return nil
		})
	}

	// Goroutines always return nil; Wait only observes context cancellation.
	if err := g.Wait(); err != nil {
		return transport.BatchAssignResponse{}, err
	}

	out := transport.BatchAssignResponse{
		Results: results,
		Total:   len(results),
	}
	for _, r := range results {
		if r.Assignment != nil {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	if out.Total > 0 {
		out.SuccessRate = math.Round(float64(out.Succeeded)/float64(out.Total)*10000) / 10000
	}
	return out, nil
}
