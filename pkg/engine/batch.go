package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pipespec/valve-datasheet/pkg/datasheet"
)

// Per-item batch outcomes.
const (
	BatchSuccess = "success"
	BatchError   = "error"
)

// batchConcurrency bounds the generation fan-out.
const batchConcurrency = 8

// BatchItem is the outcome for one VDS number of a batch request.
type BatchItem struct {
	VdsNo     string               `json:"vdsNo"`
	Status    string               `json:"status"`
	Datasheet *datasheet.Datasheet `json:"datasheet,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Succeeded reports whether the item generated a datasheet.
func (i BatchItem) Succeeded() bool {
	return i.Status == BatchSuccess
}

// GenerateBatch generates a datasheet per code. Items are independent: a
// decode failure marks its own item and never affects the others. Results
// keep the input order regardless of completion order. A context expiry
// cancels the remaining items and discards everything computed so far.
func (e *Engine) GenerateBatch(ctx context.Context, codes []string) ([]BatchItem, error) {
	results := make([]BatchItem, len(codes))
	if len(codes) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, code := range codes {
		g.Go(func() error {
			ds, err := e.Generate(gctx, code)
			switch {
			case err == nil:
				results[i] = BatchItem{VdsNo: ds.Metadata.VdsNo, Status: BatchSuccess, Datasheet: ds}
				return nil
			case gctx.Err() != nil:
				// the group is being torn down; report the cancellation
				return err
			default:
				results[i] = BatchItem{VdsNo: code, Status: BatchError, Error: err.Error()}
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug("batch generated", "total", len(codes))
	return results, nil
}
