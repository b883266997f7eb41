package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliria/erp-backend/pkg/db/models"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/pagination"
)

// Service lists and acknowledges an org's notifications.
type Service interface {
	List(ctx context.Context, orgID uuid.UUID, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, orgID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, orgID uuid.UUID) (*MarkAllResult, error)
}

type ListParams struct {
	Limit      int
	Cursor     string
	UnreadOnly bool
}

type ListResult struct {
	Items      []models.Notification `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
	Unread     int64                 `json:"unread"`
}

type MarkAllResult struct {
	Updated int64 `json:"updated"`
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, params ListParams) (*ListResult, error) {
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, listQuery{
		OrgID:      orgID,
		Limit:      pagination.Params{Limit: params.Limit}.Size(),
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	out := &ListResult{Items: rows, Unread: unread, NextCursor: next}
	if out.Items == nil {
		out.Items = []models.Notification{}
	}
	return out, nil
}

func (s *service) MarkRead(ctx context.Context, orgID, id uuid.UUID) error {
	found, err := s.repo.MarkRead(ctx, orgID, id, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, orgID uuid.UUID) (*MarkAllResult, error) {
	n, err := s.repo.MarkAllRead(ctx, orgID, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return &MarkAllResult{Updated: n}, nil
}
