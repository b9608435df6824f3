package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

// EntityRef is the weak back-reference carried by every audit entry.
type EntityRef struct {
	Kind enums.EntityKind
	ID   *uuid.UUID
}

// StoryRef points an audit entry at a story row.
func StoryRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: enums.EntityKindStory, ID: &id}
}

// ContentRef points an audit entry at a processed content row.
func ContentRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: enums.EntityKindContent, ID: &id}
}

// PublicationRef points an audit entry at a platform publication row.
func PublicationRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: enums.EntityKindPublication, ID: &id}
}

// Service is the append-only audit trail. Record persists synchronously but
// never surfaces an error to the caller; pipeline progress must not depend on
// the audit write.
type Service interface {
	Record(ctx context.Context, ref EntityRef, category enums.ErrorCategory, message string)
	List(ctx context.Context, params ListParams) ([]models.ErrorLog, error)
	Resolve(ctx context.Context, id uuid.UUID) error
	PurgeResolved(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the audit trail dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Record(ctx context.Context, ref EntityRef, category enums.ErrorCategory, message string) {
	entry := &models.ErrorLog{
		RelatedTable: ref.Kind,
		RelatedID:    ref.ID,
		Category:     category,
		Message:      message,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Append(ctx, entry); err != nil && s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"category": string(category),
			"related":  string(ref.Kind),
		})
		s.logg.Error(ctx, "audit append failed", err)
	}
}

func (s *service) List(ctx context.Context, params ListParams) ([]models.ErrorLog, error) {
	entries, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	return entries, nil
}

func (s *service) Resolve(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "audit entry id required")
	}
	updated, err := s.repo.Resolve(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve audit entry")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "audit entry not found or already resolved")
	}
	return nil
}

// PurgeResolved deletes resolved entries older than the cutoff and returns
// the number removed.
func (s *service) PurgeResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	removed, err := s.repo.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge resolved audit entries")
	}
	return removed, nil
}
