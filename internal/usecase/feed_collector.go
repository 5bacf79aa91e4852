package usecase

import (
	"context"

	"QuantLab/internal/domain/models"
	drepo "QuantLab/internal/domain/repository"
	mid "QuantLab/internal/middleware"
)

// FeedCollector reads bar events from the market stream and pushes them
// through the ingest pipeline into the configured backend.
type FeedCollector struct {
	stream  drepo.MarketStream
	proc    *BarProcessor
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
}

func NewFeedCollector(stream drepo.MarketStream, proc *BarProcessor, metrics drepo.Metrics, pipe *mid.IngestPipeline) *FeedCollector {
	return &FeedCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *FeedCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	evCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, evCh, errCh)
	return nil
}

func (c *FeedCollector) consume(ctx context.Context, evCh <-chan *models.BarEvent, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				// stream pump ended; stop selecting on the dead channel
				errCh = nil
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			evCh, errCh = c.reestablish(ctx)
		case ev, ok := <-evCh:
			if !ok {
				evCh = nil
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, ev)
			} else {
				_ = c.proc.Process(ctx, ev)
			}
			c.metrics.RecordLastClose(ev.Symbol, ev.Close)
		}
	}
}

// reestablish retries Reconnect until the stream comes back or the context
// ends, then re-reads the fresh connection. Events buffered on the old
// channels are lost with the connection that produced them.
func (c *FeedCollector) reestablish(ctx context.Context) (<-chan *models.BarEvent, <-chan error) {
	for ctx.Err() == nil {
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("reconnect")
			continue
		}
		return c.stream.Read(ctx)
	}
	return nil, nil
}

func (c *FeedCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying BarProcessor for lifecycle management.
func (c *FeedCollector) Processor() *BarProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
