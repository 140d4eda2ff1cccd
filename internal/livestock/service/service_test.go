package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/NogaLive/SNIUGB/internal/livestock/identifier"
	"github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/storage"
	"github.com/NogaLive/SNIUGB/internal/storage/memory"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

const (
	owner    = "11111111"
	stranger = "22222222"
)

type LivestockServiceSuite struct {
	suite.Suite
	db      *memory.DB
	service *Service
	ctx     context.Context
	now     time.Time
	holding *models.Holding
}

func (s *LivestockServiceSuite) SetupTest() {
	s.db = memory.New()
	s.ctx = context.Background()
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.service = New(s.db,
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithClock(func() time.Time { return s.now }),
	)

	h, err := s.service.CreateHolding(s.ctx, owner, "Fundo Lurin", "lima", "km 32")
	s.Require().NoError(err)
	s.holding = h
}

func TestLivestockServiceSuite(t *testing.T) {
	suite.Run(t, new(LivestockServiceSuite))
}

func (s *LivestockServiceSuite) register(species string) (*models.Animal, error) {
	return s.service.RegisterAnimal(s.ctx, owner, RegisterAnimalRequest{
		HoldingCode: s.holding.Code,
		Name:        "Lucera",
		Species:     species,
		Sex:         models.SexFemale,
		BirthDate:   s.now.AddDate(-2, 0, 0),
	})
}

func (s *LivestockServiceSuite) mustRegister(species string) *models.Animal {
	a, err := s.register(species)
	s.Require().NoError(err)
	return a
}

func (s *LivestockServiceSuite) TestCreateHolding() {
	s.Run("normalizes region from catalog", func() {
		s.Equal("LIMA", s.holding.Region)
		s.Regexp(`^PRD-[0-9A-F]{6}$`, s.holding.Code)
	})

	s.Run("unknown region", func() {
		_, err := s.service.CreateHolding(s.ctx, owner, "Fundo", "Atlantis", "")
		s.True(errors.Is(err, models.ErrUnknownRegion))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("lists only own holdings", func() {
		_, err := s.service.CreateHolding(s.ctx, stranger, "Otro", "PUNO", "")
		s.Require().NoError(err)
		holdings, err := s.service.ListHoldings(s.ctx, owner)
		s.Require().NoError(err)
		s.Len(holdings, 1)
	})
}

func (s *LivestockServiceSuite) TestRegisterAnimal() {
	s.Run("first animal of partition gets sequence 1", func() {
		a := s.mustRegister("Holstein")
		s.Equal("11500000015", a.CUI)
		s.Equal("HOLSTEIN", a.Species)
		s.Equal(models.HealthHealthy, a.Health)
		s.True(identifier.Verify(a.CUI))
	})

	s.Run("next animal increments the sequence", func() {
		a := s.mustRegister("HOLSTEIN")
		s.Equal("11500000024", a.CUI)
	})

	s.Run("partitions are independent", func() {
		a := s.mustRegister("BROWN SWISS")
		s.Equal("21500000013", a.CUI)
	})

	s.Run("unknown species leaves no record", func() {
		_, err := s.register("Unicorn")
		s.True(errors.Is(err, models.ErrUnknownSpecies))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		animals, err := s.service.ListAnimals(s.ctx, owner, s.holding.Code, "")
		s.Require().NoError(err)
		s.Len(animals, 3)
	})

	s.Run("holding of another user is not found", func() {
		_, err := s.service.RegisterAnimal(s.ctx, stranger, RegisterAnimalRequest{
			HoldingCode: s.holding.Code,
			Name:        "Intrusa",
			Species:     "HOLSTEIN",
			Sex:         models.SexFemale,
			BirthDate:   s.now,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid animal fields are validation errors", func() {
		_, err := s.service.RegisterAnimal(s.ctx, owner, RegisterAnimalRequest{
			HoldingCode: s.holding.Code,
			Name:        "",
			Species:     "HOLSTEIN",
			Sex:         models.SexFemale,
			BirthDate:   s.now,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *LivestockServiceSuite) TestSequenceExhausted() {
	last, err := models.NewAnimal("11599999993", "Ultima", "HOLSTEIN", models.SexMale, s.now, s.holding.Code, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
		return st.Animals.Insert(s.ctx, last)
	}))

	_, err = s.register("HOLSTEIN")
	s.True(errors.Is(err, models.ErrSequenceExhausted))
	s.True(dErrors.HasCode(err, dErrors.CodeResourceExhausted))

	a := s.mustRegister("ANGUS")
	s.Equal(3, a.SpeciesDigit, "other partitions keep allocating")
}

func (s *LivestockServiceSuite) TestConcurrentAllocation() {
	const workers = 50
	var wg sync.WaitGroup
	var failures atomic.Int32
	cuis := make(chan string, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := s.register("HOLSTEIN")
			if err != nil {
				failures.Add(1)
				return
			}
			cuis <- a.CUI
		}()
	}
	wg.Wait()
	close(cuis)

	s.Equal(int32(0), failures.Load())
	var sequences []int
	seen := map[string]bool{}
	for cui := range cuis {
		s.False(seen[cui], "duplicate CUI %s", cui)
		seen[cui] = true
		parts, err := identifier.Parse(cui)
		s.Require().NoError(err)
		sequences = append(sequences, parts.Sequence)
	}
	sort.Ints(sequences)
	s.Require().Len(sequences, workers)
	for i, seq := range sequences {
		s.Equal(i+1, seq)
	}
}

func (s *LivestockServiceSuite) TestTrashAndRestore() {
	a := s.mustRegister("HOLSTEIN")

	s.Run("claimed animal cannot be trashed", func() {
		s.Require().NoError(s.db.RunInTx(s.ctx, func(st storage.Stores) error {
			_, err := st.Transfers.ClaimAnimals(s.ctx, uuid.New(), []string{a.CUI})
			return err
		}))
		_, err := s.service.TrashAnimal(s.ctx, owner, a.CUI)
		s.True(errors.Is(err, models.ErrAnimalClaimed))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	b := s.mustRegister("HOLSTEIN")

	s.Run("trash then restore", func() {
		trashed, err := s.service.TrashAnimal(s.ctx, owner, b.CUI)
		s.Require().NoError(err)
		s.Equal(models.AnimalStatusTrashed, trashed.Status)

		_, err = s.service.TrashAnimal(s.ctx, owner, b.CUI)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		listed, err := s.service.ListAnimals(s.ctx, owner, s.holding.Code, models.AnimalStatusTrashed)
		s.Require().NoError(err)
		s.Require().Len(listed, 1)
		s.Equal(b.CUI, listed[0].CUI)

		restored, err := s.service.RestoreAnimal(s.ctx, owner, b.CUI)
		s.Require().NoError(err)
		s.True(restored.IsActive())
	})

	s.Run("other users cannot see the animal", func() {
		_, err := s.service.GetAnimal(s.ctx, stranger, b.CUI)
		s.True(errors.Is(err, models.ErrAnimalNotFound))
	})
}

func (s *LivestockServiceSuite) TestHealthEvents() {
	a := s.mustRegister("HOLSTEIN")
	b := s.mustRegister("HOLSTEIN")

	s.Run("treatment puts animals under observation", func() {
		event, err := s.service.RecordHealthEvent(s.ctx, owner, RecordHealthEventRequest{
			DiseaseTypeID:     1,
			DiseaseOccurredAt: s.now,
			Treatment:         &TreatmentInput{TypeID: 4, OccurredAt: s.now, Name: "Oxytetracycline"},
			AnimalCUIs:        []string{a.CUI, b.CUI, a.CUI},
		})
		s.Require().NoError(err)
		s.ElementsMatch([]string{a.CUI, b.CUI}, event.AnimalCUIs)
		s.assertHealth(a.CUI, models.HealthUnderObservation)
		s.assertHealth(b.CUI, models.HealthUnderObservation)
	})

	s.Run("diagnosis without treatment makes the animal sick", func() {
		_, err := s.service.RecordHealthEvent(s.ctx, owner, RecordHealthEventRequest{
			DiseaseTypeID:     2,
			DiseaseOccurredAt: s.now,
			AnimalCUIs:        []string{a.CUI},
		})
		s.Require().NoError(err)
		s.assertHealth(a.CUI, models.HealthSick)
		s.assertHealth(b.CUI, models.HealthUnderObservation)
	})

	s.Run("history lists newest first", func() {
		events, err := s.service.HealthHistory(s.ctx, owner, a.CUI)
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Nil(events[0].Treatment)
		s.NotNil(events[1].Treatment)
	})

	s.Run("foreign animals are ignored", func() {
		event, err := s.service.RecordHealthEvent(s.ctx, owner, RecordHealthEventRequest{
			DiseaseTypeID: 1,
			AnimalCUIs:    []string{b.CUI, "31500000011"},
		})
		s.Require().NoError(err)
		s.Equal([]string{b.CUI}, event.AnimalCUIs)
	})

	s.Run("no owned animals", func() {
		_, err := s.service.RecordHealthEvent(s.ctx, stranger, RecordHealthEventRequest{
			DiseaseTypeID: 1,
			AnimalCUIs:    []string{a.CUI},
		})
		s.True(errors.Is(err, models.ErrNoOwnedAnimals))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("disease type must come from the DISEASE group", func() {
		_, err := s.service.RecordHealthEvent(s.ctx, owner, RecordHealthEventRequest{
			DiseaseTypeID: 4,
			AnimalCUIs:    []string{a.CUI},
		})
		s.True(errors.Is(err, models.ErrEventTypeGroup))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown event type", func() {
		_, err := s.service.RecordHealthEvent(s.ctx, owner, RecordHealthEventRequest{
			DiseaseTypeID: 999,
			AnimalCUIs:    []string{a.CUI},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("admin reset returns animals to healthy", func() {
		n, err := s.service.ResetHealth(s.ctx, "admin", []string{a.CUI, b.CUI})
		s.Require().NoError(err)
		s.Equal(2, n)
		s.assertHealth(a.CUI, models.HealthHealthy)
		s.assertHealth(b.CUI, models.HealthHealthy)
	})
}

func (s *LivestockServiceSuite) TestListEventTypes() {
	types, err := s.service.ListEventTypes(s.ctx, models.EventGroupTreatment)
	s.Require().NoError(err)
	s.Len(types, 3)
	for _, et := range types {
		s.Equal(models.EventGroupTreatment, et.Group)
	}

	_, err = s.service.ListEventTypes(s.ctx, models.EventGroup("OTHER"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *LivestockServiceSuite) assertHealth(cui string, want models.HealthCondition) {
	s.T().Helper()
	a, err := s.service.GetAnimal(s.ctx, owner, cui)
	s.Require().NoError(err)
	s.Equal(want, a.Health, cui)
}
