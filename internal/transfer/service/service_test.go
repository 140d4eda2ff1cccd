package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/notification"
	"github.com/NogaLive/SNIUGB/internal/storage"
	"github.com/NogaLive/SNIUGB/internal/storage/memory"
	"github.com/NogaLive/SNIUGB/internal/transfer/models"
	"github.com/NogaLive/SNIUGB/internal/transfer/service/mocks"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Notifier

const (
	seller = "40000001"
	buyer  = "40000002"
	other  = "40000003"

	cowA = "11500000015"
	cowB = "11500000024"
	cowC = "11500000033"
	cowD = "11500000042"
)

type TransferServiceSuite struct {
	suite.Suite
	ctx      context.Context
	db       *memory.DB
	notifier *mocks.MockNotifier
	service  *Service
	now      time.Time

	mu    sync.Mutex
	codes map[string]string

	sellerHolding string
	buyerHolding  string
	otherHolding  string
}

func TestTransferServiceSuite(t *testing.T) {
	suite.Run(t, new(TransferServiceSuite))
}

func (s *TransferServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.db = memory.New()
	s.notifier = mocks.NewMockNotifier(ctrl)
	s.now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s.codes = make(map[string]string)

	s.notifier.EXPECT().NotifyTransferCreated(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n notification.TransferCreated) error {
			s.remember(n.TransferCode, n.VerificationCode)
			return nil
		}).AnyTimes()
	s.notifier.EXPECT().NotifyResetCode(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n notification.ResetCode) error {
			s.remember(n.TransferCode, n.VerificationCode)
			return nil
		}).AnyTimes()

	s.service = s.newService(s.notifier)

	s.sellerHolding = s.seedHolding("PRD-5E11E0", seller)
	s.buyerHolding = s.seedHolding("PRD-B0B0B0", buyer)
	s.otherHolding = s.seedHolding("PRD-0CC0CC", other)
	s.seedAnimal(cowA, s.sellerHolding)
	s.seedAnimal(cowB, s.sellerHolding)
	s.seedAnimal(cowC, s.otherHolding)
	s.seedAnimal(cowD, s.buyerHolding)
}

func (s *TransferServiceSuite) newService(n Notifier) *Service {
	return New(s.db,
		WithNotifier(n),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithClock(func() time.Time { return s.now }),
		WithBcryptCost(bcrypt.MinCost),
	)
}

func (s *TransferServiceSuite) remember(transferCode, verificationCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[transferCode] = verificationCode
}

func (s *TransferServiceSuite) codeFor(transferCode string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[transferCode]
}

func (s *TransferServiceSuite) seedHolding(code, ownerID string) string {
	h, err := livestock.NewHolding(code, "Fundo "+ownerID, "LIMA", "", ownerID, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.db.RunInTx(s.ctx, func(stores storage.Stores) error {
		return stores.Holdings.Insert(s.ctx, h)
	}))
	return h.Code
}

func (s *TransferServiceSuite) seedAnimal(cui, holdingCode string) {
	a, err := livestock.NewAnimal(cui, "Pinta", "HOLSTEIN", livestock.SexFemale, s.now.AddDate(-3, 0, 0), holdingCode, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.db.RunInTx(s.ctx, func(stores storage.Stores) error {
		return stores.Animals.Insert(s.ctx, a)
	}))
}

func (s *TransferServiceSuite) animal(cui string) *livestock.Animal {
	var a *livestock.Animal
	s.Require().NoError(s.db.RunInTx(s.ctx, func(stores storage.Stores) error {
		var err error
		a, err = stores.Animals.FindByCUI(s.ctx, cui)
		return err
	}))
	return a
}

func (s *TransferServiceSuite) claimed(cui string) bool {
	var claimed bool
	s.Require().NoError(s.db.RunInTx(s.ctx, func(stores storage.Stores) error {
		var err error
		claimed, err = stores.Transfers.IsClaimed(s.ctx, cui)
		return err
	}))
	return claimed
}

func (s *TransferServiceSuite) mustCreate(cuis ...string) *models.Request {
	res, err := s.service.Create(s.ctx, buyer, cuis, s.buyerHolding)
	s.Require().NoError(err)
	s.Require().True(res.Notified)
	return res.Request
}

func (s *TransferServiceSuite) TestCreate() {
	s.Run("opens a pending request addressed to the owner", func() {
		r := s.mustCreate(cowA, cowB, cowA)
		s.Equal(models.StatusPending, r.Status)
		s.Equal(seller, r.RespondentID)
		s.Equal(buyer, r.RequesterID)
		s.Equal([]string{cowA, cowB}, r.AnimalCUIs)
		s.Regexp(`^TRANS-[0-9A-F]{8}$`, r.Code)
		s.True(s.claimed(cowA))
		s.True(s.claimed(cowB))

		code := s.codeFor(r.Code)
		s.Regexp(`^[1-9][0-9]{5}$`, code)
		s.NotContains(r.VerificationHash, code)
		s.True(r.MatchesVerificationCode(code))
	})
}

func (s *TransferServiceSuite) TestCreateValidation() {
	cases := []struct {
		name        string
		requester   string
		cuis        []string
		destination func() string
		target      error
		code        dErrors.Code
	}{
		{"empty animal set", buyer, []string{" "}, func() string { return s.buyerHolding }, models.ErrEmptyAnimalSet, dErrors.CodeValidation},
		{"destination not owned by requester", buyer, []string{cowA}, func() string { return s.sellerHolding }, models.ErrDestinationHolding, dErrors.CodeNotFound},
		{"unknown destination", buyer, []string{cowA}, func() string { return "PRD-FFFFFF" }, models.ErrDestinationHolding, dErrors.CodeNotFound},
		{"unknown animal", buyer, []string{cowA, "10600000014"}, func() string { return s.buyerHolding }, models.ErrAnimalNotFound, dErrors.CodeNotFound},
		{"mixed ownership", buyer, []string{cowA, cowC}, func() string { return s.buyerHolding }, models.ErrMixedOwnership, dErrors.CodeValidation},
		{"self transfer", buyer, []string{cowD}, func() string { return s.buyerHolding }, models.ErrSelfTransfer, dErrors.CodeValidation},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Create(s.ctx, tc.requester, tc.cuis, tc.destination())
			s.Require().Error(err)
			s.True(errors.Is(err, tc.target), "got %v", err)
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}
	s.False(s.claimed(cowA))
}

func (s *TransferServiceSuite) TestCreateRejectsTrashedAnimal() {
	s.Require().NoError(s.db.RunInTx(s.ctx, func(stores storage.Stores) error {
		return stores.Animals.SetStatus(s.ctx, cowB, livestock.AnimalStatusTrashed, s.now)
	}))

	_, err := s.service.Create(s.ctx, buyer, []string{cowA, cowB}, s.buyerHolding)
	s.True(errors.Is(err, models.ErrAnimalNotActive))
	s.False(s.claimed(cowA))
}

func (s *TransferServiceSuite) TestCreateReportsPendingConflicts() {
	s.mustCreate(cowA)
	s.seedHolding("PRD-0D0D0D", other)

	_, err := s.service.Create(s.ctx, other, []string{cowB, cowA}, "PRD-0D0D0D")
	s.Require().Error(err)
	s.True(errors.Is(err, models.ErrAnimalAlreadyPending))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	var conflict *models.PendingConflictError
	s.Require().True(errors.As(err, &conflict))
	s.Equal([]string{cowA}, conflict.CUIs)
	s.False(s.claimed(cowB), "claims of a failed request are rolled back")
}

func (s *TransferServiceSuite) TestConcurrentCreatesClaimOnce() {
	s.seedHolding("PRD-0D0D0D", other)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	requests := []struct{ requester, destination string }{
		{buyer, s.buyerHolding},
		{other, "PRD-0D0D0D"},
	}
	for i, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.service.Create(s.ctx, req.requester, []string{cowA, cowB}, req.destination)
		}()
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrAnimalAlreadyPending):
			conflicted++
		}
	}
	s.Equal(1, succeeded)
	s.Equal(1, conflicted)
}

func (s *TransferServiceSuite) TestApprove() {
	r := s.mustCreate(cowA, cowB)

	s.Run("only the respondent can see the request", func() {
		_, err := s.service.Approve(s.ctx, r.Code, s.codeFor(r.Code), buyer)
		s.True(errors.Is(err, models.ErrNotFound))
	})

	s.Run("unknown code", func() {
		_, err := s.service.Approve(s.ctx, "TRANS-00000000", "123456", seller)
		s.True(errors.Is(err, models.ErrNotFound))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("wrong verification code leaves the request pending", func() {
		_, err := s.service.Approve(s.ctx, r.Code, "000000", seller)
		s.True(errors.Is(err, models.ErrBadVerificationCode))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(s.sellerHolding, s.animal(cowA).HoldingCode)
		s.True(s.claimed(cowA))
	})

	s.Run("right code moves the animals and releases them", func() {
		approved, err := s.service.Approve(s.ctx, r.Code, s.codeFor(r.Code), seller)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, approved.Status)
		s.Equal(s.buyerHolding, s.animal(cowA).HoldingCode)
		s.Equal(s.buyerHolding, s.animal(cowB).HoldingCode)
		s.False(s.claimed(cowA))
		s.False(s.claimed(cowB))
	})

	s.Run("second approval fails", func() {
		_, err := s.service.Approve(s.ctx, r.Code, s.codeFor(r.Code), seller)
		s.True(errors.Is(err, models.ErrNotPending))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *TransferServiceSuite) TestExpiredRequestCannotBeApproved() {
	r := s.mustCreate(cowA)

	n, err := s.service.ExpireStale(s.ctx, s.now.Add(25*time.Hour), DefaultExpiryWindow)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.False(s.claimed(cowA))

	_, err = s.service.Approve(s.ctx, r.Code, s.codeFor(r.Code), seller)
	s.True(errors.Is(err, models.ErrNotPending))
	s.Equal(s.sellerHolding, s.animal(cowA).HoldingCode)

	s.Run("sweeping again is a no-op", func() {
		n, err := s.service.ExpireStale(s.ctx, s.now.Add(26*time.Hour), DefaultExpiryWindow)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("animals can be requested again", func() {
		s.mustCreate(cowA)
	})
}

func (s *TransferServiceSuite) TestExpireStaleKeepsFreshRequests() {
	s.mustCreate(cowA)

	n, err := s.service.ExpireStale(s.ctx, s.now.Add(23*time.Hour), DefaultExpiryWindow)
	s.Require().NoError(err)
	s.Zero(n)
	s.True(s.claimed(cowA))
}

func (s *TransferServiceSuite) TestExpireStaleOnlyMovesPendingRequests() {
	stale := s.mustCreate(cowA)
	rejected := s.mustCreate(cowB)
	_, err := s.service.Reject(s.ctx, rejected.Code, seller)
	s.Require().NoError(err)

	sweptAt := s.now.Add(25 * time.Hour)
	n, err := s.service.ExpireStale(s.ctx, sweptAt, DefaultExpiryWindow)
	s.Require().NoError(err)
	s.Equal(1, n)

	list, err := s.service.ListForUser(s.ctx, buyer)
	s.Require().NoError(err)
	byCode := make(map[string]*models.Request, len(list))
	for _, r := range list {
		byCode[r.Code] = r
	}
	s.Equal(models.StatusExpired, byCode[stale.Code].Status)
	s.Equal(sweptAt, byCode[stale.Code].UpdatedAt)
	s.Equal(models.StatusRejected, byCode[rejected.Code].Status)
}

func (s *TransferServiceSuite) TestApproveRacesExpiry() {
	for range 10 {
		s.SetupTest()
		r := s.mustCreate(cowA)

		var (
			wg         sync.WaitGroup
			approveErr error
			expired    int
			expireErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, approveErr = s.service.Approve(s.ctx, r.Code, s.codeFor(r.Code), seller)
		}()
		go func() {
			defer wg.Done()
			expired, expireErr = s.service.ExpireStale(s.ctx, s.now.Add(48*time.Hour), DefaultExpiryWindow)
		}()
		wg.Wait()

		s.Require().NoError(expireErr)
		if approveErr == nil {
			s.Zero(expired)
			s.Equal(s.buyerHolding, s.animal(cowA).HoldingCode)
		} else {
			s.True(errors.Is(approveErr, models.ErrNotPending))
			s.Equal(1, expired)
			s.Equal(s.sellerHolding, s.animal(cowA).HoldingCode)
		}
		s.False(s.claimed(cowA))
	}
}

func (s *TransferServiceSuite) TestReject() {
	r := s.mustCreate(cowA)

	_, err := s.service.Reject(s.ctx, r.Code, buyer)
	s.True(errors.Is(err, models.ErrNotFound))

	rejected, err := s.service.Reject(s.ctx, r.Code, seller)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)
	s.False(s.claimed(cowA))

	_, err = s.service.Approve(s.ctx, r.Code, s.codeFor(r.Code), seller)
	s.True(errors.Is(err, models.ErrNotPending))
}

func (s *TransferServiceSuite) TestResetCode() {
	r := s.mustCreate(cowA)
	oldCode := s.codeFor(r.Code)

	_, err := s.service.ResetCode(s.ctx, r.Code, other)
	s.True(errors.Is(err, models.ErrNotFound))

	res, err := s.service.ResetCode(s.ctx, r.Code, buyer)
	s.Require().NoError(err)
	s.True(res.Notified)
	newCode := s.codeFor(r.Code)

	if newCode != oldCode {
		_, err = s.service.Approve(s.ctx, r.Code, oldCode, seller)
		s.True(errors.Is(err, models.ErrBadVerificationCode))
	}
	_, err = s.service.Approve(s.ctx, r.Code, newCode, seller)
	s.Require().NoError(err)

	_, err = s.service.ResetCode(s.ctx, r.Code, buyer)
	s.True(errors.Is(err, models.ErrNotPending))
}

func (s *TransferServiceSuite) TestNotificationFailureKeepsRequest() {
	ctrl := gomock.NewController(s.T())
	failing := mocks.NewMockNotifier(ctrl)
	failing.EXPECT().NotifyTransferCreated(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	svc := s.newService(failing)

	res, err := svc.Create(s.ctx, buyer, []string{cowA}, s.buyerHolding)
	s.Require().NoError(err)
	s.False(res.Notified)
	s.Equal(models.StatusPending, res.Request.Status)
	s.True(s.claimed(cowA))
}

func (s *TransferServiceSuite) TestListForUser() {
	first := s.mustCreate(cowA)
	s.now = s.now.Add(time.Hour)
	second := s.mustCreate(cowB)

	for _, user := range []string{buyer, seller} {
		list, err := s.service.ListForUser(s.ctx, user)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal(second.Code, list[0].Code)
		s.Equal(first.Code, list[1].Code)
	}

	list, err := s.service.ListForUser(s.ctx, other)
	s.Require().NoError(err)
	s.Empty(list)
}
