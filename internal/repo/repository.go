package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamed0406/pingkeeper/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("target with this name already exists")
)

// StorageError marks a failure of the persistence engine itself (connection,
// driver, schema), as opposed to a rejected request.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, passes sentinel errors through untouched and
// wraps anything else in a StorageError.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateName) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Ports (interfaces) — swap in any DB adapter.
type TargetStore interface {
	ListTargets(ctx context.Context) ([]domain.Target, error)
	GetTargetByName(ctx context.Context, name string) (*domain.Target, error)
	GetTargetByID(ctx context.Context, id int64) (*domain.Target, error)
	AddTarget(ctx context.Context, t *domain.Target) error
	UpdateTargetURL(ctx context.Context, id int64, newURL string) error
	DeleteTarget(ctx context.Context, id int64) error
}

// PingStore is append-only apart from BulkRewriteURL.
type PingStore interface {
	AppendPing(ctx context.Context, p *domain.PingRecord) (int64, error)
	// ListPings returns records ordered by checked_at then id. An empty
	// filterURL returns every record.
	ListPings(ctx context.Context, filterURL string) ([]domain.PingRecord, error)
	BulkRewriteURL(ctx context.Context, oldURL, newURL string) (int64, error)
}

// Store is implemented by every backend.
type Store interface {
	TargetStore
	PingStore
	Close() error
}

// NotFound builds an ErrNotFound-wrapping error naming the missing key.
func NotFound(kind string, key any) error {
	return fmt.Errorf("%s %v: %w", kind, key, ErrNotFound)
}
