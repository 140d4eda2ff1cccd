// Package memory is an in-process implementation of the storage contracts.
//
// A single mutex is held for the whole of RunInTx, so transactions are fully
// serialized. State is snapshotted when a transaction starts and restored if
// the callback returns an error, which gives callers the same all-or-nothing
// behaviour as the PostgreSQL stores.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/storage"
	transfer "github.com/NogaLive/SNIUGB/internal/transfer/models"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

type state struct {
	animals       map[string]*livestock.Animal
	holdings      map[string]*livestock.Holding
	species       map[string]livestock.Species
	regions       map[string]livestock.Region
	eventTypes    map[int]livestock.EventType
	healthEvents  []*livestock.HealthEvent
	transfers     map[uuid.UUID]*transfer.Request
	transferCodes map[string]uuid.UUID
	claims        map[string]uuid.UUID
}

func newState() *state {
	return &state{
		animals:       make(map[string]*livestock.Animal),
		holdings:      make(map[string]*livestock.Holding),
		species:       make(map[string]livestock.Species),
		regions:       make(map[string]livestock.Region),
		eventTypes:    make(map[int]livestock.EventType),
		transfers:     make(map[uuid.UUID]*transfer.Request),
		transferCodes: make(map[string]uuid.UUID),
		claims:        make(map[string]uuid.UUID),
	}
}

// clone copies every mutable record so a failed transaction can be undone.
func (s *state) clone() *state {
	c := &state{
		animals:       make(map[string]*livestock.Animal, len(s.animals)),
		holdings:      maps.Clone(s.holdings),
		species:       maps.Clone(s.species),
		regions:       maps.Clone(s.regions),
		eventTypes:    maps.Clone(s.eventTypes),
		healthEvents:  slices.Clone(s.healthEvents),
		transfers:     make(map[uuid.UUID]*transfer.Request, len(s.transfers)),
		transferCodes: maps.Clone(s.transferCodes),
		claims:        maps.Clone(s.claims),
	}
	for k, a := range s.animals {
		c.animals[k] = copyAnimal(a)
	}
	for k, r := range s.transfers {
		c.transfers[k] = copyRequest(r)
	}
	return c
}

// DB holds all state and serializes access to it.
type DB struct {
	mu      sync.Mutex
	st      *state
	timeout time.Duration
}

// Option configures a DB.
type Option func(*DB)

// WithTimeout overrides storage.DefaultTxTimeout.
func WithTimeout(d time.Duration) Option {
	return func(db *DB) {
		db.timeout = d
	}
}

// New returns an empty DB with the default reference catalogs loaded.
func New(opts ...Option) *DB {
	db := &DB{st: newState()}
	for _, opt := range opts {
		opt(db)
	}
	for _, sp := range storage.DefaultSpecies() {
		db.st.species[storage.NormalizeName(sp.Name)] = sp
	}
	for _, r := range storage.DefaultRegions() {
		db.st.regions[storage.NormalizeName(r.Name)] = r
	}
	for _, et := range storage.DefaultEventTypes() {
		db.st.eventTypes[et.ID] = et
	}
	return db
}

// RunInTx runs fn with exclusive access to the DB. Any error from fn discards
// every change fn made.
func (db *DB) RunInTx(ctx context.Context, fn func(stores storage.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := db.timeout
	if timeout == 0 {
		timeout = storage.DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	snapshot := db.st.clone()
	if err := fn(db.stores()); err != nil {
		db.st = snapshot
		return err
	}
	return nil
}

func (db *DB) stores() storage.Stores {
	return storage.Stores{
		Animals:      &animalStore{db: db},
		Holdings:     &holdingStore{db: db},
		References:   &referenceStore{db: db},
		HealthEvents: &healthEventStore{db: db},
		Transfers:    &transferStore{db: db},
	}
}

func copyAnimal(a *livestock.Animal) *livestock.Animal {
	c := *a
	return &c
}

func copyRequest(r *transfer.Request) *transfer.Request {
	c := *r
	c.AnimalCUIs = slices.Clone(r.AnimalCUIs)
	return &c
}
