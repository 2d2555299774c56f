package provider

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rpcprovider/internal/batch"
	"rpcprovider/internal/jsonrpc"
	"rpcprovider/internal/target"
	"rpcprovider/internal/transport"
)

// Batch sends all targets as one JSON-RPC batch with ids 1..N. The
// exchange uses the URL, headers and auth of targets[0]. Results are
// returned in the order the server sent them.
func Batch[U any](ctx context.Context, p *Provider, targets []target.JSONRPCTarget) ([]jsonrpc.Result[U], error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: empty batch", jsonrpc.ErrInvalidRequest)
	}

	ex, err := p.prepareChunk(batch.Chunk[target.JSONRPCTarget]{Items: targets})
	if err != nil {
		return nil, err
	}

	p.logger.Debug().Int("calls", len(targets)).Msg("dispatching batch")
	return sendChunk[U](ctx, p, ex)
}

// BatchChunkBy splits targets into batches of at most chunkSize calls and
// sends them concurrently. Each chunk uses the URL, headers and auth of its
// first target. Ids continue across chunks, so chunk k carries
// k*chunkSize+1 onwards.
//
// Every chunk is encoded before the first one is sent; an encoding error
// is returned without any exchange. If any chunk then fails at the
// transport or decode level the whole call fails with a *batch.ChunkError
// and no results are returned. Per-call errors reported by the server are
// results, not failures.
func BatchChunkBy[U any](ctx context.Context, p *Provider, targets []target.JSONRPCTarget, chunkSize int) ([]jsonrpc.Result[U], error) {
	chunks, err := batch.Plan(targets, chunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jsonrpc.ErrInvalidRequest, err)
	}

	exchanges := make([]*transport.Exchange, len(chunks))
	for i, chunk := range chunks {
		ex, err := p.prepareChunk(chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		exchanges[i] = ex
	}

	p.logger.Debug().
		Int("calls", len(targets)).
		Int("chunks", len(chunks)).
		Int("chunkSize", chunkSize).
		Msg("dispatching chunked batch")

	outcomes := make([]batch.Outcome[jsonrpc.Result[U]], len(chunks))

	var g errgroup.Group
	if p.maxConcurrentChunks > 0 {
		g.SetLimit(p.maxConcurrentChunks)
	}
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			p.logger.Debug().
				Int("chunk", chunk.Index).
				Int("firstId", chunk.Offset+1).
				Int("calls", len(chunk.Items)).
				Str("url", exchanges[i].URL).
				Msg("sending chunk")

			results, err := sendChunk[U](ctx, p, exchanges[i])
			if err != nil {
				p.logger.Warn().
					Err(err).
					Int("chunk", chunk.Index).
					Int("calls", len(chunk.Items)).
					Msg("chunk failed")
			}
			outcomes[i] = batch.Outcome[jsonrpc.Result[U]]{Results: results, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return batch.Merge(outcomes)
}

// prepareChunk encodes the chunk's envelopes and resolves its exchange
// from the first target
func (p *Provider) prepareChunk(chunk batch.Chunk[target.JSONRPCTarget]) (*transport.Exchange, error) {
	correlated := chunk.Correlate()
	requests := make([]*jsonrpc.Request, len(correlated))
	for i, c := range correlated {
		req, err := jsonrpc.NewRequest(c.Item.MethodName(), c.Item.Params(), jsonrpc.NewIDInt(c.ID))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSerialization, c.Item.MethodName(), err)
		}
		requests[i] = req
	}

	body, err := jsonrpc.MarshalBatchRequest(requests)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return p.jsonExchange(chunk.Items[0], body), nil
}

// sendChunk performs one batch exchange and decodes the reply
func sendChunk[U any](ctx context.Context, p *Provider, ex *transport.Exchange) ([]jsonrpc.Result[U], error) {
	resp, err := p.send(ctx, ex)
	if err != nil {
		return nil, err
	}

	results, err := jsonrpc.DecodeBatch[U](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return results, nil
}
