package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/storage"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
)

// The stores below are only reachable through DB.RunInTx, which already holds
// the DB lock, so they touch db.st directly.

type animalStore struct {
	db *DB
}

func (s *animalStore) FindByCUI(_ context.Context, cui string) (*livestock.Animal, error) {
	a, ok := s.db.st.animals[cui]
	if !ok {
		return nil, fmt.Errorf("animal %s: %w", cui, sentinel.ErrNotFound)
	}
	return copyAnimal(a), nil
}

// FindByCUIForUpdate needs no row lock here; the DB lock already serializes
// transactions.
func (s *animalStore) FindByCUIForUpdate(ctx context.Context, cui string) (*livestock.Animal, error) {
	return s.FindByCUI(ctx, cui)
}

func (s *animalStore) FindByCUIs(_ context.Context, cuis []string) ([]*livestock.Animal, error) {
	result := make([]*livestock.Animal, 0, len(cuis))
	for _, cui := range cuis {
		if a, ok := s.db.st.animals[cui]; ok {
			result = append(result, copyAnimal(a))
		}
	}
	return result, nil
}

func (s *animalStore) FindOwnedBy(_ context.Context, holdingCode string, status livestock.AnimalStatus) ([]*livestock.Animal, error) {
	var result []*livestock.Animal
	for _, a := range s.db.st.animals {
		if a.HoldingCode != holdingCode {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		result = append(result, copyAnimal(a))
	}
	slices.SortFunc(result, func(x, y *livestock.Animal) int {
		return strings.Compare(x.CUI, y.CUI)
	})
	return result, nil
}

func (s *animalStore) FilterOwnedBy(_ context.Context, ownerID string, cuis []string) ([]string, error) {
	var owned []string
	for _, cui := range cuis {
		a, ok := s.db.st.animals[cui]
		if !ok {
			continue
		}
		h, ok := s.db.st.holdings[a.HoldingCode]
		if ok && h.OwnerID == ownerID {
			owned = append(owned, cui)
		}
	}
	return owned, nil
}

// LockPartition is a no-op: the transaction already holds the store-wide lock.
func (s *animalStore) LockPartition(context.Context, livestock.Partition) error {
	return nil
}

func (s *animalStore) MaxSequenceInPartition(_ context.Context, p livestock.Partition) (int, error) {
	maxSeq := 0
	for _, a := range s.db.st.animals {
		if a.SpeciesDigit == p.SpeciesDigit && a.RegionCode == p.RegionCode && a.Sequence > maxSeq {
			maxSeq = a.Sequence
		}
	}
	return maxSeq, nil
}

func (s *animalStore) Exists(_ context.Context, cui string) (bool, error) {
	_, ok := s.db.st.animals[cui]
	return ok, nil
}

func (s *animalStore) Insert(_ context.Context, a *livestock.Animal) error {
	if _, ok := s.db.st.animals[a.CUI]; ok {
		return fmt.Errorf("animal %s: %w", a.CUI, sentinel.ErrConflict)
	}
	s.db.st.animals[a.CUI] = copyAnimal(a)
	return nil
}

func (s *animalStore) ReassignHolding(_ context.Context, cuis []string, holdingCode string, now time.Time) (int, error) {
	n := 0
	for _, cui := range cuis {
		if a, ok := s.db.st.animals[cui]; ok {
			a.HoldingCode = holdingCode
			a.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *animalStore) SetHealthCondition(_ context.Context, cuis []string, condition livestock.HealthCondition, now time.Time) (int, error) {
	n := 0
	for _, cui := range cuis {
		if a, ok := s.db.st.animals[cui]; ok {
			a.Health = condition
			a.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *animalStore) SetStatus(_ context.Context, cui string, status livestock.AnimalStatus, now time.Time) error {
	a, ok := s.db.st.animals[cui]
	if !ok {
		return fmt.Errorf("animal %s: %w", cui, sentinel.ErrNotFound)
	}
	a.Status = status
	a.UpdatedAt = now
	return nil
}

type holdingStore struct {
	db *DB
}

func (s *holdingStore) Insert(_ context.Context, h *livestock.Holding) error {
	if _, ok := s.db.st.holdings[h.Code]; ok {
		return fmt.Errorf("holding %s: %w", h.Code, sentinel.ErrConflict)
	}
	c := *h
	s.db.st.holdings[h.Code] = &c
	return nil
}

func (s *holdingStore) FindByCode(_ context.Context, code string) (*livestock.Holding, error) {
	h, ok := s.db.st.holdings[code]
	if !ok {
		return nil, fmt.Errorf("holding %s: %w", code, sentinel.ErrNotFound)
	}
	c := *h
	return &c, nil
}

func (s *holdingStore) ListByOwner(_ context.Context, ownerID string) ([]*livestock.Holding, error) {
	var result []*livestock.Holding
	for _, h := range s.db.st.holdings {
		if h.OwnerID == ownerID {
			c := *h
			result = append(result, &c)
		}
	}
	slices.SortFunc(result, func(x, y *livestock.Holding) int {
		return strings.Compare(x.Code, y.Code)
	})
	return result, nil
}

type referenceStore struct {
	db *DB
}

func (s *referenceStore) SpeciesByName(_ context.Context, name string) (*livestock.Species, error) {
	sp, ok := s.db.st.species[storage.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("species %q: %w", name, sentinel.ErrNotFound)
	}
	return &sp, nil
}

func (s *referenceStore) RegionByName(_ context.Context, name string) (*livestock.Region, error) {
	r, ok := s.db.st.regions[storage.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("region %q: %w", name, sentinel.ErrNotFound)
	}
	return &r, nil
}

func (s *referenceStore) EventTypeByID(_ context.Context, id int) (*livestock.EventType, error) {
	et, ok := s.db.st.eventTypes[id]
	if !ok {
		return nil, fmt.Errorf("event type %d: %w", id, sentinel.ErrNotFound)
	}
	return &et, nil
}

func (s *referenceStore) EventTypesByGroup(_ context.Context, group livestock.EventGroup) ([]livestock.EventType, error) {
	var result []livestock.EventType
	for _, et := range s.db.st.eventTypes {
		if et.Group == group {
			result = append(result, et)
		}
	}
	slices.SortFunc(result, func(x, y livestock.EventType) int {
		return strings.Compare(x.Name, y.Name)
	})
	return result, nil
}

type healthEventStore struct {
	db *DB
}

func (s *healthEventStore) Insert(_ context.Context, e *livestock.HealthEvent) error {
	c := *e
	c.AnimalCUIs = slices.Clone(e.AnimalCUIs)
	s.db.st.healthEvents = append(s.db.st.healthEvents, &c)
	return nil
}

func (s *healthEventStore) ListByAnimal(_ context.Context, cui string) ([]*livestock.HealthEvent, error) {
	var result []*livestock.HealthEvent
	for i := len(s.db.st.healthEvents) - 1; i >= 0; i-- {
		e := s.db.st.healthEvents[i]
		if slices.Contains(e.AnimalCUIs, cui) {
			c := *e
			c.AnimalCUIs = slices.Clone(e.AnimalCUIs)
			result = append(result, &c)
		}
	}
	return result, nil
}
