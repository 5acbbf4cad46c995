package audit

import (
	"context"
)

// Repository is append-plus-read only.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Query(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
}
