package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NogaLive/SNIUGB/internal/livestock/metrics"
	"github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/storage"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
	pstrings "github.com/NogaLive/SNIUGB/pkg/platform/strings"
)

const maxHoldingCodeAttempts = 3

var tracer = otel.Tracer("github.com/NogaLive/SNIUGB/internal/livestock")

// Clock returns the current time. Injected for tests.
type Clock func() time.Time

// Service orchestrates holdings, animal registration and health events.
type Service struct {
	tx        storage.Tx
	allocator *Allocator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     Clock
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a Service.
func New(tx storage.Tx, opts ...Option) *Service {
	s := &Service{
		tx:        tx,
		allocator: NewAllocator(),
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterAnimalRequest carries the fields needed to register an animal.
// The region used for the CUI is the holding's region.
type RegisterAnimalRequest struct {
	HoldingCode string
	Name        string
	Species     string
	Sex         models.Sex
	BirthDate   time.Time
}

// TreatmentInput is the optional treatment part of a health event request.
type TreatmentInput struct {
	TypeID     int
	OccurredAt time.Time
	Name       string
	Dose       *float64
	DoseUnit   string
}

// RecordHealthEventRequest references catalog rows by ID.
type RecordHealthEventRequest struct {
	DiseaseTypeID     int
	DiseaseOccurredAt time.Time
	Treatment         *TreatmentInput
	Notes             string
	AnimalCUIs        []string
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateHolding registers a holding owned by actorID with a generated code.
func (s *Service) CreateHolding(ctx context.Context, actorID, name, region, location string) (holding *models.Holding, err error) {
	ctx, span := tracer.Start(ctx, "livestock.CreateHolding")
	defer func() { endSpan(span, err) }()

	now := s.clock()
	err = s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		r, err := stores.References.RegionByName(ctx, region)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(models.ErrUnknownRegion, dErrors.CodeValidation, fmt.Sprintf("unknown region %q", region))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve region")
		}

		for attempt := 0; attempt < maxHoldingCodeAttempts; attempt++ {
			h, err := models.NewHolding(models.NewHoldingCode(), name, r.Name, location, actorID, now)
			if err != nil {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			err = stores.Holdings.Insert(ctx, h)
			if err == nil {
				holding = h
				return nil
			}
			if !errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create holding")
			}
		}
		return dErrors.New(dErrors.CodeInternal, "could not generate a unique holding code")
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "holding created",
		"holding_code", holding.Code,
		"owner_id", actorID,
		"region", holding.Region,
	)
	return holding, nil
}

// ListHoldings returns the holdings owned by actorID.
func (s *Service) ListHoldings(ctx context.Context, actorID string) ([]*models.Holding, error) {
	var holdings []*models.Holding
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		var err error
		holdings, err = stores.Holdings.ListByOwner(ctx, actorID)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list holdings")
	}
	return holdings, nil
}

// ownedHolding loads a holding and hides holdings owned by someone else.
func ownedHolding(ctx context.Context, stores storage.Stores, code, actorID string) (*models.Holding, error) {
	h, err := stores.Holdings.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(models.ErrHoldingNotFound, dErrors.CodeNotFound, "holding not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holding")
	}
	if !h.IsOwnedBy(actorID) {
		return nil, dErrors.Wrap(models.ErrHoldingNotFound, dErrors.CodeNotFound, "holding not found")
	}
	return h, nil
}

// RegisterAnimal mints a CUI for a new animal and persists it in the same
// transaction, so a failed insert never leaves a consumed sequence behind and
// no partial animal record is ever visible.
func (s *Service) RegisterAnimal(ctx context.Context, actorID string, req RegisterAnimalRequest) (animal *models.Animal, err error) {
	ctx, span := tracer.Start(ctx, "livestock.RegisterAnimal")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	defer s.metrics.ObserveAllocation(start)

	now := s.clock()
	var alloc *Allocation
	err = s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		h, err := ownedHolding(ctx, stores, req.HoldingCode, actorID)
		if err != nil {
			return err
		}

		alloc, err = s.allocator.Allocate(ctx, stores, req.Species, h.Region)
		if err != nil {
			return err
		}

		a, err := models.NewAnimal(alloc.CUI, req.Name, alloc.Species.Name, req.Sex, req.BirthDate, h.Code, now)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, err.Error())
		}
		if err := stores.Animals.Insert(ctx, a); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "CUI collision, retry the registration")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register animal")
		}
		animal = a
		return nil
	})
	if err != nil {
		s.metrics.IncrementAllocationFailure(string(dErrors.CodeOf(err)))
		s.logger.WarnContext(ctx, "animal registration failed",
			"holding_code", req.HoldingCode,
			"species", req.Species,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("cui", animal.CUI))
	s.metrics.IncrementAllocated(alloc.Partition.SpeciesDigit, alloc.Partition.RegionCode)
	s.logger.InfoContext(ctx, "animal registered",
		"cui", animal.CUI,
		"holding_code", animal.HoldingCode,
		"species_digit", alloc.Partition.SpeciesDigit,
		"region_code", alloc.Partition.RegionCode,
		"sequence", alloc.Sequence,
	)
	return animal, nil
}

// ListAnimals lists the animals of one of the actor's holdings.
func (s *Service) ListAnimals(ctx context.Context, actorID, holdingCode string, status models.AnimalStatus) ([]*models.Animal, error) {
	if status != "" && !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be active or trashed")
	}
	var animals []*models.Animal
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		if _, err := ownedHolding(ctx, stores, holdingCode, actorID); err != nil {
			return err
		}
		var err error
		animals, err = stores.Animals.FindOwnedBy(ctx, holdingCode, status)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list animals")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return animals, nil
}

// ownedAnimal loads an animal and hides animals owned by someone else. With
// lock set the row stays locked until the transaction ends, and a transfer
// that locked it first has committed its claims before the read returns.
func ownedAnimal(ctx context.Context, stores storage.Stores, cui, actorID string, lock bool) (*models.Animal, error) {
	find := stores.Animals.FindByCUI
	if lock {
		find = stores.Animals.FindByCUIForUpdate
	}
	a, err := find(ctx, cui)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(models.ErrAnimalNotFound, dErrors.CodeNotFound, "animal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load animal")
	}
	if _, err := ownedHolding(ctx, stores, a.HoldingCode, actorID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.Wrap(models.ErrAnimalNotFound, dErrors.CodeNotFound, "animal not found")
		}
		return nil, err
	}
	return a, nil
}

// GetAnimal returns one of the actor's animals.
func (s *Service) GetAnimal(ctx context.Context, actorID, cui string) (*models.Animal, error) {
	var animal *models.Animal
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		var err error
		animal, err = ownedAnimal(ctx, stores, cui, actorID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return animal, nil
}

// TrashAnimal moves an animal to the trash. Animals claimed by a pending
// transfer cannot be trashed.
func (s *Service) TrashAnimal(ctx context.Context, actorID, cui string) (*models.Animal, error) {
	now := s.clock()
	var animal *models.Animal
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		a, err := ownedAnimal(ctx, stores, cui, actorID, true)
		if err != nil {
			return err
		}
		if err := a.CanTrash(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidState, "animal is already in the trash")
		}
		claimed, err := stores.Transfers.IsClaimed(ctx, cui)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check pending transfers")
		}
		if claimed {
			return dErrors.Wrap(models.ErrAnimalClaimed, dErrors.CodeConflict, "animal is part of a pending transfer")
		}
		a.ApplyTrash(now)
		if err := stores.Animals.SetStatus(ctx, a.CUI, a.Status, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to trash animal")
		}
		animal = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "animal trashed", "cui", cui, "actor_id", actorID)
	return animal, nil
}

// RestoreAnimal takes an animal out of the trash.
func (s *Service) RestoreAnimal(ctx context.Context, actorID, cui string) (*models.Animal, error) {
	now := s.clock()
	var animal *models.Animal
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		a, err := ownedAnimal(ctx, stores, cui, actorID, true)
		if err != nil {
			return err
		}
		if err := a.CanRestore(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidState, "animal is not in the trash")
		}
		a.ApplyRestore(now)
		if err := stores.Animals.SetStatus(ctx, a.CUI, a.Status, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore animal")
		}
		animal = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "animal restored", "cui", cui, "actor_id", actorID)
	return animal, nil
}

func resolveEventType(ctx context.Context, stores storage.Stores, id int) (*models.EventType, error) {
	et, err := stores.References.EventTypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown event type %d", id))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve event type")
	}
	return et, nil
}

// RecordHealthEvent persists a health event for the actor's animals among
// req.AnimalCUIs and moves each of them to the event's resulting condition in
// the same transaction. Animals that belong to other users are ignored; if
// none belong to the actor the call fails.
func (s *Service) RecordHealthEvent(ctx context.Context, actorID string, req RecordHealthEventRequest) (event *models.HealthEvent, err error) {
	ctx, span := tracer.Start(ctx, "livestock.RecordHealthEvent")
	defer func() { endSpan(span, err) }()

	cuis := pstrings.DedupeAndTrim(req.AnimalCUIs)
	if len(cuis) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one animal is required")
	}

	now := s.clock()
	err = s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		disease, err := resolveEventType(ctx, stores, req.DiseaseTypeID)
		if err != nil {
			return err
		}
		var treatment *models.Treatment
		if t := req.Treatment; t != nil {
			tt, err := resolveEventType(ctx, stores, t.TypeID)
			if err != nil {
				return err
			}
			treatment = &models.Treatment{
				Type:       *tt,
				OccurredAt: t.OccurredAt,
				Name:       strings.TrimSpace(t.Name),
				Dose:       t.Dose,
				DoseUnit:   strings.TrimSpace(t.DoseUnit),
			}
		}

		owned, err := stores.Animals.FilterOwnedBy(ctx, actorID, cuis)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve animals")
		}
		if len(owned) == 0 {
			return dErrors.Wrap(models.ErrNoOwnedAnimals, dErrors.CodeNotFound, "no valid animals found for the current user")
		}

		e, err := models.NewHealthEvent(*disease, req.DiseaseOccurredAt, treatment, strings.TrimSpace(req.Notes), owned, actorID, now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return err
		}
		if err := stores.HealthEvents.Insert(ctx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record health event")
		}
		if _, err := stores.Animals.SetHealthCondition(ctx, owned, e.ResultingCondition(), now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update health condition")
		}
		event = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	condition := event.ResultingCondition()
	s.metrics.IncrementHealthEvent(string(condition))
	s.logger.InfoContext(ctx, "health event recorded",
		"event_id", event.ID,
		"creator_id", actorID,
		"animals", len(event.AnimalCUIs),
		"condition", condition,
	)
	return event, nil
}

// HealthHistory lists the health events recorded for one of the actor's animals.
func (s *Service) HealthHistory(ctx context.Context, actorID, cui string) ([]*models.HealthEvent, error) {
	var events []*models.HealthEvent
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		if _, err := ownedAnimal(ctx, stores, cui, actorID, false); err != nil {
			return err
		}
		var err error
		events, err = stores.HealthEvents.ListByAnimal(ctx, cui)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list health events")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListEventTypes returns the catalog entries of one group.
func (s *Service) ListEventTypes(ctx context.Context, group models.EventGroup) ([]models.EventType, error) {
	if !group.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown event group")
	}
	var types []models.EventType
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		var err error
		types, err = stores.References.EventTypesByGroup(ctx, group)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list event types")
	}
	return types, nil
}

// ResetHealth is the administrative action that returns animals to Healthy.
// It is the only path that sets HealthHealthy.
func (s *Service) ResetHealth(ctx context.Context, adminID string, cuis []string) (int, error) {
	cuis = pstrings.DedupeAndTrim(cuis)
	if len(cuis) == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "at least one animal is required")
	}
	now := s.clock()
	var n int
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		var err error
		n, err = stores.Animals.SetHealthCondition(ctx, cuis, models.HealthHealthy, now)
		return err
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset health condition")
	}
	s.logger.InfoContext(ctx, "health condition reset",
		"admin_id", adminID,
		"requested", len(cuis),
		"updated", n,
	)
	return n, nil
}
