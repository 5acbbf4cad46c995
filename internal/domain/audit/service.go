package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/healthid/healthid/internal/platform/auth"
)

// ErrStorageUnavailable means the audit entry could not be persisted. Because
// audit emission shares a transaction with the state change it documents, the
// caller's whole operation aborts with it.
var ErrStorageUnavailable = errors.New("audit storage unavailable")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one entry and returns its id. It never mutates existing
// entries. Must be called inside the transaction of the state change it
// records.
func (s *Service) Record(ctx context.Context, e *Entry) (uuid.UUID, error) {
	if e.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("audit entry requires an actor")
	}
	if e.Action == "" {
		return uuid.Nil, fmt.Errorf("audit entry requires an action")
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return e.ID, nil
}

// Query returns entries most-recent-first. Non-admin callers are forcibly
// scoped to their own entries regardless of the requested filter.
func (s *Service) Query(ctx context.Context, callerID uuid.UUID, callerRole auth.Role, f Filter, limit, offset int) ([]*Entry, int, error) {
	if callerRole != auth.RoleAdmin {
		f.UserID = callerID
	}
	return s.repo.Query(ctx, f, limit, offset)
}
