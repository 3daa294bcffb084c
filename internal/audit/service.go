package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hr-platform/internal/tenant"
	"hr-platform/pkg/logger"

	"github.com/google/uuid"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Repository is the persistence contract for audit records.
//
// It is append-only: there are no Update/Delete methods.
// List must filter by the scope's organization.
type Repository interface {
	Append(ctx context.Context, r Record) error
	List(ctx context.Context, scope tenant.Scope, q Query) ([]Record, int64, error)
}

// Recorder is what mutating services depend on. Record never fails from the
// caller's point of view.
type Recorder interface {
	Record(ctx context.Context, actor tenant.Scope, action Action, res Resource, meta Meta)
}

// Observer receives audit outcomes for metrics.
type Observer interface {
	AuditRecorded(action string)
	AuditWriteFailed()
	ObserveAuditWrite(start time.Time)
}

// Service records and lists audit entries.
//
// Writes are best-effort: every failure (invalid input, store error) is logged
// and counted, then absorbed. Nothing is retried, batched or queued; Record
// returns only once the store call has completed or failed.
type Service struct {
	repo Repository
	obs  Observer
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, obs Observer) *Service {
	return &Service{repo: repo, obs: obs, clock: time.Now}
}

var _ Recorder = (*Service)(nil)

// Record appends one entry attributed to actor. The organization and user are
// taken from the scope, so a record can never name a tenant other than the
// caller's.
func (s *Service) Record(ctx context.Context, actor tenant.Scope, action Action, res Resource, meta Meta) {
	rec, err := s.build(ctx, actor, action, res, meta)
	if err == nil {
		err = s.append(ctx, rec)
	}
	if err != nil {
		s.failed()
		logger.From(ctx).Error("audit write failed",
			"audit_action", string(action),
			"organization_id", actor.OrganizationID(),
			"user_id", actor.UserID(),
			"err", err,
		)
		return
	}
	if s.obs != nil {
		s.obs.AuditRecorded(string(action))
	}
}

func (s *Service) build(ctx context.Context, actor tenant.Scope, action Action, res Resource, meta Meta) (Record, error) {
	if s.repo == nil {
		return Record{}, errors.New("audit: repository not configured")
	}
	if actor.IsZero() || actor.UserID() == "" {
		return Record{}, fmt.Errorf("%w: actor has no verified organization", ErrInvalidArgument)
	}
	if !action.Valid() {
		return Record{}, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, action)
	}
	if !res.valid() {
		return Record{}, fmt.Errorf("%w: bad resource %q/%q", ErrInvalidArgument, res.Type, res.ID)
	}
	m := meta.clone()
	if ip := ClientIPFrom(ctx); ip != "" {
		if _, set := m[MetaClientIP]; !set {
			m[MetaClientIP] = ip
		}
	}
	return Record{
		ID:             uuid.NewString(),
		Timestamp:      s.clock().UTC(),
		UserID:         actor.UserID(),
		OrganizationID: actor.OrganizationID(),
		Action:         action,
		ResourceType:   res.Type,
		ResourceID:     res.ID,
		Meta:           m,
	}, nil
}

// append shields the caller from a panicking store as well as from errors.
func (s *Service) append(ctx context.Context, rec Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("audit: store panicked: %v", p)
		}
	}()
	start := time.Now()
	if s.obs != nil {
		defer s.obs.ObserveAuditWrite(start)
	}
	return s.repo.Append(ctx, rec)
}

func (s *Service) failed() {
	if s.obs != nil {
		s.obs.AuditWriteFailed()
	}
}

// List returns the scope's organization audit trail, newest first.
func (s *Service) List(ctx context.Context, scope tenant.Scope, q Query) (Page, error) {
	if scope.IsZero() {
		return Page{}, tenant.ErrNoTenant
	}
	if q.Action != "" && !q.Action.Valid() {
		return Page{}, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, q.Action)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return Page{}, fmt.Errorf("%w: to is before from", ErrInvalidArgument)
	}
	if s.repo == nil {
		return Page{}, errors.New("audit: repository not configured")
	}
	q = q.normalized()

	recs, total, err := s.repo.List(ctx, scope, q)
	if err != nil {
		return Page{}, err
	}
	if recs == nil {
		recs = []Record{}
	}
	pages := 0
	if total > 0 {
		pages = int((total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	return Page{Records: recs, Page: q.Page, Limit: q.Limit, Total: total, TotalPages: pages}, nil
}
