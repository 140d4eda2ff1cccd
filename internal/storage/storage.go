// Package storage declares the persistence contracts shared by the livestock
// and transfer services, and the unit of work that scopes them.
//
// Every mutation that depends on an invariant check (partition max read +
// insert, claim + insert, pending guard + reassignment) runs inside one
// RunInTx call. Implementations live in storage/postgres and storage/memory.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	transfer "github.com/NogaLive/SNIUGB/internal/transfer/models"
)

// DefaultTxTimeout bounds a transaction when the caller's context has no deadline.
const DefaultTxTimeout = 5 * time.Second

// AnimalStore is the animal registry. Lookups that miss return sentinel.ErrNotFound;
// Insert returns sentinel.ErrConflict when the CUI already exists.
type AnimalStore interface {
	FindByCUI(ctx context.Context, cui string) (*livestock.Animal, error)
	// FindByCUIForUpdate is FindByCUI that also locks the row until the
	// transaction ends.
	FindByCUIForUpdate(ctx context.Context, cui string) (*livestock.Animal, error)
	// FindByCUIs returns the animals that exist; missing CUIs are simply absent.
	FindByCUIs(ctx context.Context, cuis []string) ([]*livestock.Animal, error)
	// FindOwnedBy lists a holding's animals; an empty status matches all.
	FindOwnedBy(ctx context.Context, holdingCode string, status livestock.AnimalStatus) ([]*livestock.Animal, error)
	// FilterOwnedBy returns the subset of cuis whose holding belongs to ownerID.
	FilterOwnedBy(ctx context.Context, ownerID string, cuis []string) ([]string, error)
	// LockPartition serializes allocators of the same partition until the
	// surrounding transaction ends.
	LockPartition(ctx context.Context, p livestock.Partition) error
	// MaxSequenceInPartition returns 0 when the partition is empty.
	MaxSequenceInPartition(ctx context.Context, p livestock.Partition) (int, error)
	Exists(ctx context.Context, cui string) (bool, error)
	Insert(ctx context.Context, a *livestock.Animal) error
	ReassignHolding(ctx context.Context, cuis []string, holdingCode string, now time.Time) (int, error)
	SetHealthCondition(ctx context.Context, cuis []string, condition livestock.HealthCondition, now time.Time) (int, error)
	SetStatus(ctx context.Context, cui string, status livestock.AnimalStatus, now time.Time) error
}

// HoldingStore persists holdings. Insert returns sentinel.ErrConflict on a duplicate code.
type HoldingStore interface {
	Insert(ctx context.Context, h *livestock.Holding) error
	FindByCode(ctx context.Context, code string) (*livestock.Holding, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*livestock.Holding, error)
}

// ReferenceStore exposes the species, region and event-type catalogs.
type ReferenceStore interface {
	SpeciesByName(ctx context.Context, name string) (*livestock.Species, error)
	RegionByName(ctx context.Context, name string) (*livestock.Region, error)
	EventTypeByID(ctx context.Context, id int) (*livestock.EventType, error)
	EventTypesByGroup(ctx context.Context, group livestock.EventGroup) ([]livestock.EventType, error)
}

// HealthEventStore persists sanitary events with their animal associations.
type HealthEventStore interface {
	Insert(ctx context.Context, e *livestock.HealthEvent) error
	ListByAnimal(ctx context.Context, cui string) ([]*livestock.HealthEvent, error)
}

// TransferStore persists transfer requests and the pending-claim table.
//
// A claim row exists for an animal exactly while it belongs to a pending
// request. ClaimAnimals inserts claims for every cui it can and returns the
// ones already held by another request; callers must abort the transaction
// when that list is non-empty.
type TransferStore interface {
	Insert(ctx context.Context, r *transfer.Request) error
	ClaimAnimals(ctx context.Context, transferID uuid.UUID, cuis []string) (conflicts []string, err error)
	ReleaseClaims(ctx context.Context, transferIDs ...uuid.UUID) error
	IsClaimed(ctx context.Context, cui string) (bool, error)
	// FindByCodeForUpdate loads the request and locks its row for the rest of the transaction.
	FindByCodeForUpdate(ctx context.Context, code string) (*transfer.Request, error)
	// UpdateStatusIfPending returns sentinel.ErrInvalidState when the row is no longer pending.
	UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status transfer.Status, now time.Time) error
	UpdateVerificationHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error
	// FindPendingBeforeForUpdate loads and locks every pending request created
	// before cutoff, oldest first. Rows resolved by a concurrent transaction
	// while waiting for the lock are left out.
	FindPendingBeforeForUpdate(ctx context.Context, cutoff time.Time) ([]*transfer.Request, error)
	// ListForUser returns requests sent or received by userID, newest first.
	ListForUser(ctx context.Context, userID string) ([]*transfer.Request, error)
}

// Stores is the set of stores bound to one transaction.
type Stores struct {
	Animals      AnimalStore
	Holdings     HoldingStore
	References   ReferenceStore
	HealthEvents HealthEventStore
	Transfers    TransferStore
}

// Tx provides the transactional boundary. Implementations wrap a database
// transaction or, in memory, a store-wide lock with rollback on error.
type Tx interface {
	RunInTx(ctx context.Context, fn func(stores Stores) error) error
}
