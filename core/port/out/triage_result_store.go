package out

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// ResultStorePort persists classified batches for later retrieval. It is a
// plain key-value contract; the pipeline core never touches storage
// directly.
type ResultStorePort interface {
	SaveBatch(ctx context.Context, userKey string, result *domain.BatchResult) error
	LoadBatch(ctx context.Context, userKey string) (*domain.BatchResult, bool, error)

	SaveLastRun(ctx context.Context, userKey string, at time.Time) error
	LoadLastRun(ctx context.Context, userKey string) (time.Time, bool, error)
}
