package classify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/metrics"
)

// DefaultWorkers bounds concurrent model calls per batch.
const DefaultWorkers = 4

// BatchClassifier classifies message batches against a chat model. Calls
// for different messages run concurrently through a worker group; the
// result slice always has one entry per input message, in input order.
type BatchClassifier struct {
	factory out.ChatModelFactory
	parser  *ResponseParser
	workers int
	log     zerolog.Logger
}

// NewBatchClassifier creates a batch classifier. workers <= 0 falls back
// to DefaultWorkers.
func NewBatchClassifier(factory out.ChatModelFactory, workers int, log zerolog.Logger) *BatchClassifier {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &BatchClassifier{
		factory: factory,
		parser:  NewResponseParser(),
		workers: workers,
		log:     log.With().Str("component", "batch_classifier").Logger(),
	}
}

type classifyJob struct {
	index int
	msg   domain.Message
}

// resultSlot records the outcome for one input index. done distinguishes
// a written slot from one the pool never reached.
type resultSlot struct {
	category domain.Category
	matched  bool
	failed   bool
	done     bool
}

// batchWorker implements pool.Worker for classifyJob. Each job writes its
// own slot, so no locking is needed across workers beyond the fatal-error
// latch.
type batchWorker struct {
	model   out.ChatModelPort
	parser  *ResponseParser
	results []resultSlot
	log     zerolog.Logger

	mu       sync.Mutex
	fatalErr error
}

// setFatal latches the first batch-wide failure.
func (w *batchWorker) setFatal(err error) {
	w.mu.Lock()
	if w.fatalErr == nil {
		w.fatalErr = err
	}
	w.mu.Unlock()
}

func (w *batchWorker) fatal() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fatalErr
}

// Do classifies one message. Call failures are recorded in the slot and
// swallowed so one bad message never aborts the batch. The exception is a
// rejected credential: that fails every call identically, so it is latched
// as a batch-wide failure instead of degrading the whole result to the
// fallback category.
func (w *batchWorker) Do(ctx context.Context, job classifyJob) error {
	provider := w.model.GetProviderType()

	start := time.Now()
	response, err := w.model.Invoke(ctx, BuildPrompt(job.msg))
	if err != nil {
		metrics.RecordProviderCall(provider, "error", time.Since(start))
		metrics.RecordClassification(provider, metrics.OutcomeFailed)

		var provErr *out.ProviderError
		if errors.As(err, &provErr) && provErr.Code == out.ProviderErrAuth {
			w.setFatal(err)
			w.results[job.index] = resultSlot{category: domain.CategoryGeneral, failed: true, done: true}
			return nil
		}

		w.log.Warn().Err(err).
			Str("message_id", job.msg.ID).
			Msg("classification call failed, assigning fallback category")
		w.results[job.index] = resultSlot{category: domain.CategoryGeneral, failed: true, done: true}
		return nil
	}
	metrics.RecordProviderCall(provider, "ok", time.Since(start))

	category, matched := w.parser.Parse(response)
	if matched {
		metrics.RecordClassification(provider, metrics.OutcomeClassified)
	} else {
		metrics.RecordClassification(provider, metrics.OutcomeUnparsed)
		w.log.Warn().
			Str("message_id", job.msg.ID).
			Str("response", response).
			Msg("could not match category from model response, defaulting to General")
	}
	w.results[job.index] = resultSlot{category: category, matched: matched, done: true}
	return nil
}

// Classify runs the full batch against the given provider. It returns one
// classified message per input, in input order. Per-message call failures
// are counted in BatchResult.PartialFailures instead of failing the call;
// only setup problems (bad provider, missing key) return an error.
func (c *BatchClassifier) Classify(ctx context.Context, msgs []domain.Message, provider out.ChatProvider, apiKey string) (*domain.BatchResult, error) {
	model, err := c.newModel(provider, apiKey)
	if err != nil {
		return nil, err
	}

	result := &domain.BatchResult{Classified: make([]domain.ClassifiedMessage, 0, len(msgs))}
	if len(msgs) == 0 {
		return result, nil
	}

	c.log.Info().
		Str("provider", string(provider)).
		Int("messages", len(msgs)).
		Msg("starting batch classification")
	metrics.BatchSize.Observe(float64(len(msgs)))

	worker := &batchWorker{
		model:   model,
		parser:  c.parser,
		results: make([]resultSlot, len(msgs)),
		log:     c.log,
	}

	workers := c.workers
	if workers > len(msgs) {
		workers = len(msgs)
	}
	group := pool.New[classifyJob](workers, worker).WithContinueOnError()
	if err := group.Go(ctx); err != nil {
		return nil, apperr.Internal("failed to start classification workers").WithError(err)
	}
	for i := range msgs {
		group.Submit(classifyJob{index: i, msg: msgs[i]})
	}
	if err := group.Close(ctx); err != nil {
		c.log.Warn().Err(err).Msg("classification worker group closed with error")
	}

	if err := worker.fatal(); err != nil {
		return nil, err
	}

	for i, msg := range msgs {
		slot := worker.results[i]
		if !slot.done {
			// The pool never reached this job, most likely a cancelled
			// context. Count it like a call failure.
			slot = resultSlot{category: domain.CategoryGeneral, failed: true}
		}
		if slot.failed {
			result.PartialFailures++
		}
		result.Classified = append(result.Classified, domain.ClassifiedMessage{
			Message:  msg,
			Category: slot.category,
		})
	}

	c.log.Info().
		Str("provider", string(provider)).
		Int("partial_failures", result.PartialFailures).
		Interface("category_counts", result.CategoryCounts()).
		Msg("batch classification finished")
	return result, nil
}

// newModel validates provider and key and builds the chat model.
func (c *BatchClassifier) newModel(provider out.ChatProvider, apiKey string) (out.ChatModelPort, error) {
	switch provider {
	case out.ChatProviderOpenAI, out.ChatProviderGemini:
	default:
		return nil, apperr.ValidationFailed(`invalid provider, use "openai" or "gemini"`)
	}
	if apiKey == "" {
		return nil, apperr.ValidationFailed(fmt.Sprintf("%s API key is required", providerLabel(provider)))
	}
	model, err := c.factory.CreateModel(provider, apiKey)
	if err != nil {
		return nil, err
	}
	return model, nil
}

func providerLabel(provider out.ChatProvider) string {
	if provider == out.ChatProviderGemini {
		return "Gemini"
	}
	return "OpenAI"
}
