package policy

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Operation outcomes reported to the Observer.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Observer receives service events, typically to update metrics.
type Observer interface {
	ObserveOperation(operation, outcome string)
	ObserveValidationFailure(field string)
}

// ServiceConfig contains the collaborators of a Service. Every field is
// optional.
type ServiceConfig struct {
	// Clock supplies "today". Default: UTC wall clock.
	Clock *Clock

	// Tracer creates a span per operation. Default: no-op.
	Tracer trace.Tracer

	// Logger receives write events. Default: slog.Default().
	Logger *slog.Logger

	// Observer receives operation outcomes. Default: none.
	Observer Observer
}

// Service implements the policy operations on top of a Storage: list,
// create, retrieve, update and delete. Writes are validated against the
// current date; reads render is_expired against the current date.
type Service struct {
	store    Storage
	clock    *Clock
	tracer   trace.Tracer
	logger   *slog.Logger
	observer Observer
}

// NewService creates a service over store.
func NewService(store Storage, cfg *ServiceConfig) *Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	s := &Service{
		store:    store,
		clock:    cfg.Clock,
		tracer:   cfg.Tracer,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
	if s.clock == nil {
		s.clock = &Clock{}
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("policykeeper/policy")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "policy.service")
	return s
}

// Today returns the date writes are validated against.
func (s *Service) Today() Date {
	return s.clock.Today()
}

// Store returns the underlying storage.
func (s *Service) Store() Storage {
	return s.store
}

// List returns every policy matching q, in ascending ID order.
func (s *Service) List(ctx context.Context, q Query) ([]View, error) {
	ctx, span := s.tracer.Start(ctx, "policy.List")
	defer span.End()

	today := s.Today()
	policies, err := s.store.List(ctx, q.Filter(today))
	if err != nil {
		return nil, s.fail(span, "list", err)
	}

	span.SetAttributes(attribute.Int("policy.count", len(policies)))
	s.observe("list", OutcomeSuccess)
	return Views(policies, today), nil
}

// Create validates d as a complete field set and persists a new policy.
// Nothing is written when validation fails.
func (s *Service) Create(ctx context.Context, d *Draft) (View, error) {
	ctx, span := s.tracer.Start(ctx, "policy.Create")
	defer span.End()

	today := s.Today()
	changes, err := d.Validate(today, false)
	if err != nil {
		return View{}, s.fail(span, "create", err)
	}

	p := &Policy{}
	changes.Apply(p)
	if err := s.store.Create(ctx, p); err != nil {
		return View{}, s.fail(span, "create", err)
	}

	span.SetAttributes(attribute.Int64("policy.id", p.ID))
	s.logger.InfoContext(ctx, "policy created",
		"policy_id", p.ID,
		"policy_type", p.Type,
		"expiry_date", p.ExpiryDate.String(),
	)
	s.observe("create", OutcomeSuccess)
	return p.View(today), nil
}

// Get returns the policy with the given ID.
func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	ctx, span := s.tracer.Start(ctx, "policy.Get", trace.WithAttributes(attribute.Int64("policy.id", id)))
	defer span.End()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, s.fail(span, "get", err)
	}

	s.observe("get", OutcomeSuccess)
	return p.View(s.Today()), nil
}

// Update applies d to the policy with the given ID. With partial set only
// the supplied fields are validated and changed; otherwise d must carry a
// complete field set. An unknown ID is reported before any validation
// failure. The stored record is unchanged when validation fails.
func (s *Service) Update(ctx context.Context, id int64, d *Draft, partial bool) (View, error) {
	operation := "update"
	if partial {
		operation = "partial_update"
	}
	ctx, span := s.tracer.Start(ctx, "policy.Update", trace.WithAttributes(
		attribute.Int64("policy.id", id),
		attribute.Bool("policy.partial", partial),
	))
	defer span.End()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, s.fail(span, operation, err)
	}

	today := s.Today()
	changes, err := d.Validate(today, partial)
	if err != nil {
		return View{}, s.fail(span, operation, err)
	}

	changes.Apply(p)
	if err := s.store.Update(ctx, p); err != nil {
		return View{}, s.fail(span, operation, err)
	}

	s.logger.InfoContext(ctx, "policy updated",
		"policy_id", p.ID,
		"partial", partial,
	)
	s.observe(operation, OutcomeSuccess)
	return p.View(today), nil
}

// Delete permanently removes the policy with the given ID.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "policy.Delete", trace.WithAttributes(attribute.Int64("policy.id", id)))
	defer span.End()

	if err := s.store.Delete(ctx, id); err != nil {
		return s.fail(span, "delete", err)
	}

	s.logger.InfoContext(ctx, "policy deleted", "policy_id", id)
	s.observe("delete", OutcomeSuccess)
	return nil
}

// fail classifies err, reports it to the span and observer and returns it
// unchanged.
func (s *Service) fail(span trace.Span, operation string, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		span.AddEvent("validation failed", trace.WithAttributes(
			attribute.StringSlice("policy.invalid_fields", verr.Fields.Fields()),
		))
		for _, field := range verr.Fields.Fields() {
			if s.observer != nil {
				s.observer.ObserveValidationFailure(field)
			}
		}
		s.observe(operation, OutcomeInvalid)
	case errors.Is(err, ErrNotFound):
		span.AddEvent("policy not found")
		s.observe(operation, OutcomeNotFound)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("policy operation failed", "operation", operation, "error", err)
		s.observe(operation, OutcomeError)
	}
	return err
}

func (s *Service) observe(operation, outcome string) {
	if s.observer != nil {
		s.observer.ObserveOperation(operation, outcome)
	}
}
