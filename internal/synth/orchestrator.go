package synth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/model"
	"github.com/narravox/narravox/internal/text"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProgressFunc is invoked after each chunk reaches a terminal state.
type ProgressFunc func(done, total int)

// Result carries the orchestrator's output. Cancelled marks a cooperative
// stop: Clips then holds whatever completed, still in chunk order.
type Result struct {
	Clips     []Clip
	Cancelled bool
}

// Orchestrator dispatches chunks to a backend through a bounded worker pool.
//
// For single-flight backends the actual generation call is serialized behind
// one mutex with an explicit state reset inside the critical section; the
// pool still buys overlap of decode and cleanup with generation. For
// concurrent-capable backends workers call the backend directly.
type Orchestrator struct {
	cfg     config.SynthesisConfig
	backend model.Backend
	gate    *Gate
	logger  *slog.Logger

	genMu sync.Mutex

	chunksDone metric.Int64Counter
	synthTime  metric.Float64Histogram
}

func NewOrchestrator(cfg config.SynthesisConfig, backend model.Backend, gate *Gate, logger *slog.Logger) *Orchestrator {
	meter := otel.Meter("narravox/synth")
	chunksDone, _ := meter.Int64Counter("narravox_chunks_synthesized_total",
		metric.WithDescription("Chunks that reached a terminal synthesis state"))
	synthTime, _ := meter.Float64Histogram("narravox_chunk_synthesis_seconds",
		metric.WithDescription("Wall time per chunk synthesis"))
	return &Orchestrator{
		cfg:        cfg,
		backend:    backend,
		gate:       gate,
		logger:     logger.With(slog.String("component", "orchestrator")),
		chunksDone: chunksDone,
		synthTime:  synthTime,
	}
}

// generate wraps the backend call with the single-flight discipline: one
// in-flight call at a time, state reset immediately before each call.
func (o *Orchestrator) generate(ctx context.Context, req model.Request) ([]int, error) {
	if !o.backend.SingleFlight() {
		return o.backend.Generate(ctx, req)
	}
	o.genMu.Lock()
	defer o.genMu.Unlock()
	if err := o.backend.Reset(ctx); err != nil {
		return nil, err
	}
	return o.backend.Generate(ctx, req)
}

// Run synthesizes all chunks and returns clips in original chunk order.
// Worker completion order is unconstrained; results land in an index-keyed
// slice. Per-chunk errors are collected and the first recorded one is
// returned only after every worker has drained, so one failing chunk does
// not hide the status of the rest. Cancellation is observed before each
// dequeue; in-flight generations finish.
func (o *Orchestrator) Run(ctx context.Context, chunks []text.Chunk, voice string, sampling config.SamplingConfig, progress ProgressFunc) (Result, error) {
	total := len(chunks)
	if total == 0 {
		return Result{}, nil
	}

	jobs := make(chan text.Chunk, total)
	for _, c := range chunks {
		jobs <- c
	}
	close(jobs)

	results := make([]*Clip, total)
	var (
		mu   sync.Mutex
		errs []error
		done int
		wg   sync.WaitGroup
	)

	workers := o.cfg.Workers
	if workers > total {
		workers = total
	}

	markers := o.backend.Markers()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				// Stop taking new chunks once cancellation is observed.
				if ctx.Err() != nil {
					return
				}
				chunk, ok := <-jobs
				if !ok {
					return
				}

				start := time.Now()
				clip, err := o.gate.Synthesize(ctx, o.generate, markers, chunk, voice, sampling)
				o.synthTime.Record(ctx, time.Since(start).Seconds())

				mu.Lock()
				if err != nil {
					o.chunksDone.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failed")))
					errs = append(errs, &ChunkError{ChunkIndex: chunk.Index, Err: err})
				} else {
					o.chunksDone.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "ok")))
					results[chunk.Index] = &clip
				}
				done++
				doneNow := done
				mu.Unlock()

				if err != nil {
					o.logger.Warn("chunk synthesis failed",
						slog.Int("chunk", chunk.Index),
						slog.String("error", err.Error()))
				}
				if progress != nil {
					progress(doneNow, total)
				}
			}
		}()
	}
	wg.Wait()

	clips := make([]Clip, 0, total)
	for _, r := range results {
		if r != nil {
			clips = append(clips, *r)
		}
	}

	// Cancellation is a terminal state, not an error: preserve partial output.
	if ctx.Err() != nil {
		o.logger.Info("synthesis cancelled",
			slog.Int("completed", len(clips)),
			slog.Int("total", total))
		return Result{Clips: clips, Cancelled: true}, nil
	}
	if len(errs) > 0 {
		return Result{}, errs[0]
	}
	return Result{Clips: clips}, nil
}
