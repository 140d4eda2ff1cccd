package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/storage"
	transfer "github.com/NogaLive/SNIUGB/internal/transfer/models"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
	now time.Time
}

func (s *MemoryStoreSuite) SetupTest() {
	s.db = New()
	s.ctx = context.Background()
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) seedAnimal(cui, holding string) {
	a, err := livestock.NewAnimal(cui, "Lucera", "HOLSTEIN", livestock.SexFemale, s.now.AddDate(-1, 0, 0), holding, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
		return st.Animals.Insert(s.ctx, a)
	}))
}

func (s *MemoryStoreSuite) seedRequest(cuis []string, createdAt time.Time) *transfer.Request {
	r, err := transfer.NewRequest(uuid.New(), transfer.NewTransferCode(), "22222222", "11111111", "PRD-DEST01", cuis, "hash", createdAt)
	s.Require().NoError(err)
	s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
		if err := st.Transfers.Insert(s.ctx, r); err != nil {
			return err
		}
		conflicts, err := st.Transfers.ClaimAnimals(s.ctx, r.ID, cuis)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &transfer.PendingConflictError{CUIs: conflicts}
		}
		return nil
	}))
	return r
}

func (s *MemoryStoreSuite) TestRollback() {
	s.Run("error discards every write", func() {
		boom := errors.New("boom")
		a, err := livestock.NewAnimal("11500000015", "Lucera", "HOLSTEIN", livestock.SexFemale, s.now, "PRD-A", s.now)
		s.Require().NoError(err)

		err = s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			s.Require().NoError(st.Animals.Insert(s.ctx, a))
			return boom
		})
		s.Require().ErrorIs(err, boom)

		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			exists, err := st.Animals.Exists(s.ctx, a.CUI)
			s.False(exists)
			return err
		}))
	})

	s.Run("mutations through returned copies do not leak", func() {
		s.seedAnimal("11500000024", "PRD-A")
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			a, err := st.Animals.FindByCUI(s.ctx, "11500000024")
			s.Require().NoError(err)
			a.HoldingCode = "PRD-B"
			return nil
		}))
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			a, err := st.Animals.FindByCUI(s.ctx, "11500000024")
			s.Equal("PRD-A", a.HoldingCode)
			return err
		}))
	})

	s.Run("cancelled context is rejected", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		err := s.db.RunInTx(ctx, func(storage.Stores) error { return nil })
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func (s *MemoryStoreSuite) TestAnimals() {
	s.seedAnimal("11500000015", "PRD-A")
	s.seedAnimal("11500000024", "PRD-A")

	s.Run("duplicate CUI conflicts", func() {
		a, err := livestock.NewAnimal("11500000015", "Other", "HOLSTEIN", livestock.SexMale, s.now, "PRD-B", s.now)
		s.Require().NoError(err)
		err = s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			return st.Animals.Insert(s.ctx, a)
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("max sequence per partition", func() {
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			maxSeq, err := st.Animals.MaxSequenceInPartition(s.ctx, livestock.Partition{SpeciesDigit: 1, RegionCode: 15})
			s.Equal(2, maxSeq)
			empty, _ := st.Animals.MaxSequenceInPartition(s.ctx, livestock.Partition{SpeciesDigit: 2, RegionCode: 15})
			s.Equal(0, empty)
			return err
		}))
	})

	s.Run("filters by owner through holdings", func() {
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			h, err := livestock.NewHolding("PRD-A", "Fundo", "LIMA", "", "11111111", s.now)
			s.Require().NoError(err)
			s.Require().NoError(st.Holdings.Insert(s.ctx, h))
			owned, err := st.Animals.FilterOwnedBy(s.ctx, "11111111", []string{"11500000015", "99999999999"})
			s.Equal([]string{"11500000015"}, owned)
			return err
		}))
	})

	s.Run("bulk health update", func() {
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			n, err := st.Animals.SetHealthCondition(s.ctx, []string{"11500000015", "11500000024", "missing"}, livestock.HealthSick, s.now)
			s.Equal(2, n)
			return err
		}))
	})
}

func (s *MemoryStoreSuite) TestClaims() {
	s.Run("second claim reports conflicts and rolls back", func() {
		first := s.seedRequest([]string{"11500000015"}, s.now)

		r, err := transfer.NewRequest(uuid.New(), transfer.NewTransferCode(), "33333333", "11111111", "PRD-DEST02", []string{"11500000024", "11500000015"}, "hash", s.now)
		s.Require().NoError(err)
		err = s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			s.Require().NoError(st.Transfers.Insert(s.ctx, r))
			conflicts, err := st.Transfers.ClaimAnimals(s.ctx, r.ID, r.AnimalCUIs)
			s.Require().NoError(err)
			s.Equal([]string{"11500000015"}, conflicts)
			return &transfer.PendingConflictError{CUIs: conflicts}
		})
		s.ErrorIs(err, transfer.ErrAnimalAlreadyPending)

		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			claimed, _ := st.Transfers.IsClaimed(s.ctx, "11500000024")
			s.False(claimed, "loser's claim must not survive rollback")
			_, err := st.Transfers.FindByCodeForUpdate(s.ctx, r.Code)
			s.ErrorIs(err, sentinel.ErrNotFound)

			s.Require().NoError(st.Transfers.ReleaseClaims(s.ctx, first.ID))
			claimed, err = st.Transfers.IsClaimed(s.ctx, "11500000015")
			s.False(claimed)
			return err
		}))
	})
}

func (s *MemoryStoreSuite) TestStatusAndExpiry() {
	old := s.seedRequest([]string{"11500000015"}, s.now.Add(-25*time.Hour))
	fresh := s.seedRequest([]string{"11500000024"}, s.now.Add(-time.Hour))

	s.Run("finds only stale pending requests", func() {
		cutoff := s.now.Add(-24 * time.Hour)
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			stale, err := st.Transfers.FindPendingBeforeForUpdate(s.ctx, cutoff)
			s.Require().NoError(err)
			s.Require().Len(stale, 1)
			s.Equal(old.ID, stale[0].ID)
			return st.Transfers.UpdateStatusIfPending(s.ctx, old.ID, transfer.StatusExpired, s.now)
		}))
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			stale, err := st.Transfers.FindPendingBeforeForUpdate(s.ctx, cutoff)
			s.Empty(stale)
			return err
		}))
	})

	s.Run("conditional status update", func() {
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			s.ErrorIs(st.Transfers.UpdateStatusIfPending(s.ctx, old.ID, transfer.StatusApproved, s.now), sentinel.ErrInvalidState)
			return st.Transfers.UpdateStatusIfPending(s.ctx, fresh.ID, transfer.StatusApproved, s.now)
		}))
	})

	s.Run("lists newest first", func() {
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			list, err := st.Transfers.ListForUser(s.ctx, "11111111")
			s.Require().Len(list, 2)
			s.Equal(fresh.ID, list[0].ID)
			s.Equal(old.ID, list[1].ID)
			return err
		}))
	})
}
