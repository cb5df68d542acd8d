// Package pipeline wires fetch, normalization, classification and
// persistence into the triage service.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/core/service/normalize"
	"triage_server/pkg/apperr"
)

// DefaultRunTimeout bounds one full fetch-and-classify run.
const DefaultRunTimeout = 120 * time.Second

// DefaultFetchLimit is how many recent messages a fetch pulls.
const DefaultFetchLimit = 15

// batchClassifier is the slice of classify.BatchClassifier the
// orchestrator needs. Kept local so tests can stub it.
type batchClassifier interface {
	Classify(ctx context.Context, msgs []domain.Message, provider out.ChatProvider, apiKey string) (*domain.BatchResult, error)
}

// Orchestrator implements in.TriageService on top of the outbound ports.
type Orchestrator struct {
	mail       out.MailProviderPort
	normalizer *normalize.Normalizer
	classifier batchClassifier
	store      out.ResultStorePort // nil disables persistence
	fetchLimit int
	runTimeout time.Duration
	log        zerolog.Logger
}

var _ in.TriageService = (*Orchestrator)(nil)

// NewOrchestrator creates the pipeline service. store may be nil, in which
// case runs still work but nothing is persisted.
func NewOrchestrator(
	mail out.MailProviderPort,
	classifier batchClassifier,
	store out.ResultStorePort,
	fetchLimit int,
	runTimeout time.Duration,
	log zerolog.Logger,
) *Orchestrator {
	if fetchLimit <= 0 {
		fetchLimit = DefaultFetchLimit
	}
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Orchestrator{
		mail:       mail,
		normalizer: normalize.NewNormalizer(),
		classifier: classifier,
		store:      store,
		fetchLimit: fetchLimit,
		runTimeout: runTimeout,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// FetchMessages pulls the most recent messages and normalizes them.
func (o *Orchestrator) FetchMessages(ctx context.Context, accessToken string) ([]domain.Message, error) {
	if accessToken == "" {
		return nil, apperr.MissingField("access_token")
	}

	raws, err := o.mail.ListRecent(ctx, accessToken, o.fetchLimit)
	if err != nil {
		return nil, mapProviderError(err)
	}

	msgs := o.normalizer.NormalizeAll(raws)
	o.log.Info().
		Int("fetched", len(raws)).
		Int("normalized", len(msgs)).
		Msg("fetched mailbox messages")
	return msgs, nil
}

// ClassifyBatch classifies the request's messages. Per-message failures are
// absorbed into the result; only request-level problems return an error.
func (o *Orchestrator) ClassifyBatch(ctx context.Context, req *in.ClassifyRequest) (*domain.BatchResult, error) {
	if req == nil {
		return nil, apperr.ValidationFailed("missing request body")
	}
	if req.Messages == nil {
		return nil, apperr.ValidationFailed("invalid emails array")
	}

	result, err := o.classifier.Classify(ctx, req.Messages, req.Provider, req.APIKey)
	if err != nil {
		return nil, mapProviderError(err)
	}
	return result, nil
}

// Run executes fetch, classify and persist as one operation. Persistence
// failures are logged but never fail a run that produced results.
func (o *Orchestrator) Run(ctx context.Context, req *in.RunRequest) (*in.RunResult, error) {
	if req == nil {
		return nil, apperr.ValidationFailed("missing request body")
	}

	ctx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	msgs, err := o.FetchMessages(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	fetchedAt := time.Now().UTC()
	if len(msgs) == 0 {
		o.log.Info().Msg("no messages to classify")
		return &in.RunResult{
			Result:         &domain.BatchResult{Classified: []domain.ClassifiedMessage{}},
			CategoryCounts: map[domain.Category]int{},
			FetchedAt:      fetchedAt,
		}, nil
	}

	result, err := o.ClassifyBatch(ctx, &in.ClassifyRequest{
		Messages: msgs,
		Provider: req.Provider,
		APIKey:   req.APIKey,
	})
	if err != nil {
		return nil, err
	}

	o.persist(ctx, req.UserKey, result, fetchedAt)

	return &in.RunResult{
		Result:         result,
		CategoryCounts: result.CategoryCounts(),
		FetchedAt:      fetchedAt,
	}, nil
}

// LastResult loads the persisted batch for userKey.
func (o *Orchestrator) LastResult(ctx context.Context, userKey string) (*in.StoredResult, error) {
	if o.store == nil {
		return nil, apperr.NotFound("stored results")
	}
	if userKey == "" {
		return nil, apperr.MissingField("user_key")
	}

	batch, ok, err := o.store.LoadBatch(ctx, userKey)
	if err != nil {
		return nil, apperr.Internal("failed to load stored results").WithError(err)
	}
	if !ok {
		return nil, apperr.NotFound("stored results")
	}

	stored := &in.StoredResult{Result: batch}
	if at, ok, err := o.store.LoadLastRun(ctx, userKey); err == nil && ok {
		stored.LastRun = at
	}
	return stored, nil
}

// persist writes the batch and run timestamp. Failures here only warn; the
// classification result is already in hand and must reach the caller.
func (o *Orchestrator) persist(ctx context.Context, userKey string, result *domain.BatchResult, at time.Time) {
	if o.store == nil || userKey == "" {
		return
	}
	if err := o.store.SaveBatch(ctx, userKey, result); err != nil {
		o.log.Warn().Err(err).Str("user_key", userKey).Msg("failed to persist classified batch")
		return
	}
	if err := o.store.SaveLastRun(ctx, userKey, at); err != nil {
		o.log.Warn().Err(err).Str("user_key", userKey).Msg("failed to persist run timestamp")
	}
}

// mapProviderError lifts outbound provider errors into the application
// error taxonomy. AppErrors pass through untouched.
func mapProviderError(err error) error {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var provErr *out.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case out.ProviderErrAuth:
			return apperr.InvalidCredential(provErr.Provider, provErr)
		case out.ProviderErrForbidden:
			return apperr.Forbidden(provErr.Provider, provErr)
		case out.ProviderErrRateLimit:
			return apperr.RateLimited(provErr.Provider, provErr)
		case out.ProviderErrServer:
			return apperr.ProviderUnavailable(provErr.Provider, provErr)
		case out.ProviderErrInvalidInput:
			return apperr.ValidationFailed(provErr.Message)
		default:
			return apperr.TransportError(provErr)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("pipeline run")
	}
	return apperr.Internal("unexpected pipeline failure").WithError(err)
}
