package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

type fakeMail struct {
	raws []out.RawMessage
	err  error
}

func (f *fakeMail) GetProviderType() string { return "gmail" }

func (f *fakeMail) ListRecent(ctx context.Context, accessToken string, limit int) ([]out.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.raws, nil
}

type fakeClassifier struct {
	result   *domain.BatchResult
	err      error
	gotMsgs  []domain.Message
	gotKey   string
	gotMatch out.ChatProvider
}

func (f *fakeClassifier) Classify(ctx context.Context, msgs []domain.Message, provider out.ChatProvider, apiKey string) (*domain.BatchResult, error) {
	f.gotMsgs = msgs
	f.gotMatch = provider
	f.gotKey = apiKey
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	result := &domain.BatchResult{}
	for _, m := range msgs {
		result.Classified = append(result.Classified, domain.ClassifiedMessage{
			Message: m, Category: domain.CategoryGeneral,
		})
	}
	return result, nil
}

type fakeStore struct {
	batches  map[string]*domain.BatchResult
	lastRuns map[string]time.Time
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches:  map[string]*domain.BatchResult{},
		lastRuns: map[string]time.Time{},
	}
}

func (s *fakeStore) SaveBatch(ctx context.Context, userKey string, result *domain.BatchResult) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.batches[userKey] = result
	return nil
}

func (s *fakeStore) LoadBatch(ctx context.Context, userKey string) (*domain.BatchResult, bool, error) {
	b, ok := s.batches[userKey]
	return b, ok, nil
}

func (s *fakeStore) SaveLastRun(ctx context.Context, userKey string, at time.Time) error {
	s.lastRuns[userKey] = at
	return nil
}

func (s *fakeStore) LoadLastRun(ctx context.Context, userKey string) (time.Time, bool, error) {
	at, ok := s.lastRuns[userKey]
	return at, ok, nil
}

func rawMessage(id, subject string) out.RawMessage {
	return out.RawMessage{
		ID:      id,
		Snippet: "snippet for " + id,
		Payload: &out.RawPart{
			MimeType: "text/plain",
			Headers:  []out.RawHeader{{Name: "Subject", Value: subject}},
		},
	}
}

func newTestOrchestrator(mail out.MailProviderPort, classifier batchClassifier, store out.ResultStorePort) *Orchestrator {
	return NewOrchestrator(mail, classifier, store, 15, time.Minute, zerolog.Nop())
}

func TestFetchMessages(t *testing.T) {
	mail := &fakeMail{raws: []out.RawMessage{
		rawMessage("a", "first"),
		{Snippet: "no id, dropped"},
		rawMessage("b", "second"),
	}}
	o := newTestOrchestrator(mail, &fakeClassifier{}, nil)

	msgs, err := o.FetchMessages(context.Background(), "token")
	if err != nil {
		t.Fatalf("FetchMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Errorf("order = %q, %q", msgs[0].ID, msgs[1].ID)
	}
}

func TestFetchMessagesMissingToken(t *testing.T) {
	o := newTestOrchestrator(&fakeMail{}, &fakeClassifier{}, nil)

	_, err := o.FetchMessages(context.Background(), "")
	if apperr.GetHTTPStatus(err) != 400 {
		t.Errorf("status = %d, want 400", apperr.GetHTTPStatus(err))
	}
}

func TestFetchMessagesMapsProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		code       out.ProviderErrorCode
		wantStatus int
	}{
		{name: "auth", code: out.ProviderErrAuth, wantStatus: 401},
		{name: "forbidden", code: out.ProviderErrForbidden, wantStatus: 403},
		{name: "rate limit", code: out.ProviderErrRateLimit, wantStatus: 429},
		{name: "server", code: out.ProviderErrServer, wantStatus: 502},
		{name: "network", code: out.ProviderErrNetwork, wantStatus: 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail := &fakeMail{err: out.NewProviderError("gmail", tt.code, "boom", nil, false)}
			o := newTestOrchestrator(mail, &fakeClassifier{}, nil)

			_, err := o.FetchMessages(context.Background(), "token")
			if err == nil {
				t.Fatal("FetchMessages() error = nil")
			}
			if got := apperr.GetHTTPStatus(err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestClassifyBatchValidation(t *testing.T) {
	o := newTestOrchestrator(&fakeMail{}, &fakeClassifier{}, nil)

	if _, err := o.ClassifyBatch(context.Background(), nil); apperr.GetHTTPStatus(err) != 400 {
		t.Errorf("nil request status = %d, want 400", apperr.GetHTTPStatus(err))
	}
	req := &in.ClassifyRequest{Provider: out.ChatProviderOpenAI, APIKey: "k"}
	if _, err := o.ClassifyBatch(context.Background(), req); apperr.GetHTTPStatus(err) != 400 {
		t.Errorf("nil messages status = %d, want 400", apperr.GetHTTPStatus(err))
	}
}

func TestRunPersistsAndCounts(t *testing.T) {
	mail := &fakeMail{raws: []out.RawMessage{rawMessage("a", "s1"), rawMessage("b", "s2")}}
	classifier := &fakeClassifier{result: &domain.BatchResult{
		Classified: []domain.ClassifiedMessage{
			{Message: domain.Message{ID: "a"}, Category: domain.CategoryImportant},
			{Message: domain.Message{ID: "b"}, Category: domain.CategoryImportant},
		},
		PartialFailures: 0,
	}}
	store := newFakeStore()
	o := newTestOrchestrator(mail, classifier, store)

	res, err := o.Run(context.Background(), &in.RunRequest{
		AccessToken: "token",
		Provider:    out.ChatProviderGemini,
		APIKey:      "gk",
		UserKey:     "user-1",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if classifier.gotMatch != out.ChatProviderGemini || classifier.gotKey != "gk" {
		t.Errorf("classifier got provider=%v key=%q", classifier.gotMatch, classifier.gotKey)
	}
	if res.CategoryCounts[domain.CategoryImportant] != 2 {
		t.Errorf("CategoryCounts = %v", res.CategoryCounts)
	}
	if store.batches["user-1"] == nil {
		t.Error("batch was not persisted")
	}
	if _, ok := store.lastRuns["user-1"]; !ok {
		t.Error("last run timestamp was not persisted")
	}
}

func TestRunZeroMessagesShortCircuits(t *testing.T) {
	classifier := &fakeClassifier{}
	o := newTestOrchestrator(&fakeMail{}, classifier, newFakeStore())

	res, err := o.Run(context.Background(), &in.RunRequest{
		AccessToken: "token",
		Provider:    out.ChatProviderOpenAI,
		APIKey:      "k",
		UserKey:     "user-1",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Result.Classified) != 0 {
		t.Errorf("Classified = %v, want empty", res.Result.Classified)
	}
	if classifier.gotMsgs != nil {
		t.Error("classifier was called for an empty mailbox")
	}
}

func TestRunPersistFailureIsNonFatal(t *testing.T) {
	mail := &fakeMail{raws: []out.RawMessage{rawMessage("a", "s1")}}
	store := newFakeStore()
	store.saveErr = errors.New("redis down")
	o := newTestOrchestrator(mail, &fakeClassifier{}, store)

	res, err := o.Run(context.Background(), &in.RunRequest{
		AccessToken: "token",
		Provider:    out.ChatProviderOpenAI,
		APIKey:      "k",
		UserKey:     "user-1",
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil despite persist failure", err)
	}
	if len(res.Result.Classified) != 1 {
		t.Errorf("Classified len = %d, want 1", len(res.Result.Classified))
	}
}

func TestLastResult(t *testing.T) {
	store := newFakeStore()
	batch := &domain.BatchResult{Classified: []domain.ClassifiedMessage{
		{Message: domain.Message{ID: "a"}, Category: domain.CategorySpam},
	}}
	store.batches["user-1"] = batch
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.lastRuns["user-1"] = at

	o := newTestOrchestrator(&fakeMail{}, &fakeClassifier{}, store)

	stored, err := o.LastResult(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LastResult() error = %v", err)
	}
	if len(stored.Result.Classified) != 1 || !stored.LastRun.Equal(at) {
		t.Errorf("stored = %+v", stored)
	}

	if _, err := o.LastResult(context.Background(), "nobody"); apperr.GetHTTPStatus(err) != 404 {
		t.Errorf("unknown user status = %d, want 404", apperr.GetHTTPStatus(err))
	}
}
