package statemachine

import (
	"context"

	"github.com/lendstate/lendstate/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one request of a batch. Exactly one of Result and Err is set.
type BatchItem struct {
	Request TransitionRequest
	Result  *Result
	Err     error
}

// BatchResult keeps the outcomes in request order.
type BatchResult struct {
	Items []BatchItem
}

func (r *BatchResult) Succeeded() []*Result {
	var results []*Result

	for _, item := range r.Items {
		if item.Err == nil {
			results = append(results, item.Result)
		}
	}

	return results
}

// Failed maps entity id to the error that stopped its transition.
func (r *BatchResult) Failed() map[string]error {
	failed := make(map[string]error)

	for _, item := range r.Items {
		if item.Err != nil {
			failed[item.Request.EntityID] = item.Err
		}
	}

	return failed
}

// TransitionBatch runs every request as its own transition. A failure is
// recorded against its entity and never stops or rolls back the others.
func (m *Machine) TransitionBatch(ctx context.Context, requests []TransitionRequest) *BatchResult {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "statemachine.transition_batch",
		attribute.Int(otelhelper.BatchSizeKey, len(requests)),
	)
	defer span.End()

	result := &BatchResult{Items: make([]BatchItem, len(requests))}

	var g errgroup.Group

	g.SetLimit(m.batchLimit)

	for i, req := range requests {
		g.Go(func() error {
			res, err := m.Transition(ctx, req)
			if err != nil {
				m.logger.ErrorContext(ctx, "Batch transition failed",
					"entity_id", req.EntityID, "to", req.ToStatus, "error", err)
			}

			result.Items[i] = BatchItem{Request: req, Result: res, Err: err}

			return nil
		})
	}

	_ = g.Wait()

	failed := len(result.Failed())

	span.SetAttributes(attribute.Int(otelhelper.BatchFailedKey, failed))
	m.logger.InfoContext(ctx, "Batch transition finished", "total", len(requests), "failed", failed)

	return result
}
