package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/notification"
	"github.com/NogaLive/SNIUGB/internal/storage"
	"github.com/NogaLive/SNIUGB/internal/transfer/metrics"
	"github.com/NogaLive/SNIUGB/internal/transfer/models"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
	pstrings "github.com/NogaLive/SNIUGB/pkg/platform/strings"
)

const (
	// DefaultExpiryWindow is how long a request stays pending before the sweeper expires it.
	DefaultExpiryWindow = 24 * time.Hour

	maxTransferCodeAttempts = 3
)

var tracer = otel.Tracer("github.com/NogaLive/SNIUGB/internal/transfer")

// Notifier delivers transfer notices. Implemented by notification.KafkaGateway
// and notification.LogGateway.
type Notifier interface {
	NotifyTransferCreated(ctx context.Context, n notification.TransferCreated) error
	NotifyResetCode(ctx context.Context, n notification.ResetCode) error
}

type Clock func() time.Time

// Service runs the transfer request state machine.
type Service struct {
	tx           storage.Tx
	notifier     Notifier
	logger       *slog.Logger
	metrics      *metrics.Metrics
	clock        Clock
	bcryptCost   int
	expiryWindow time.Duration
}

type Option func(s *Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

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

// WithBcryptCost sets the cost used to hash verification codes. Tests use
// bcrypt.MinCost to keep runs fast.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithExpiryWindow sets the window reported to respondents in notices.
func WithExpiryWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.expiryWindow = window
		}
	}
}

// New constructs a Service. Without WithNotifier, notices go to the log.
func New(tx storage.Tx, opts ...Option) *Service {
	s := &Service{
		tx:           tx,
		logger:       slog.Default(),
		clock:        time.Now,
		expiryWindow: DefaultExpiryWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notification.NewLogGateway(s.logger)
	}
	return s
}

// CreateResult is returned by Create. Notified is false when the request was
// persisted but the notice could not be delivered; the request stays pending.
type CreateResult struct {
	Request  *models.Request
	Notified bool
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Create opens a pending request for requesterID to receive cuis into
// destination. All checks, the exclusivity claims and the insert happen in one
// transaction; the notice is sent after commit.
func (s *Service) Create(ctx context.Context, requesterID string, cuis []string, destination string) (result *CreateResult, err error) {
	ctx, span := tracer.Start(ctx, "transfer.Create")
	defer func() { endSpan(span, err) }()

	cuis = pstrings.DedupeAndTrim(cuis)
	if len(cuis) == 0 {
		return nil, dErrors.Wrap(models.ErrEmptyAnimalSet, dErrors.CodeValidation, "at least one animal is required")
	}

	now := s.clock()
	var (
		request *models.Request
		code    string
	)
	err = s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		if err := checkDestination(ctx, stores, destination, requesterID); err != nil {
			return err
		}

		respondentID, err := resolveRespondent(ctx, stores, cuis)
		if err != nil {
			return err
		}
		if respondentID == requesterID {
			return dErrors.Wrap(models.ErrSelfTransfer, dErrors.CodeValidation, "you already own these animals")
		}

		code, err = models.NewVerificationCode()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification code")
		}
		hash, err := models.HashVerificationCode(code, s.bcryptCost)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash verification code")
		}

		for attempt := 0; attempt < maxTransferCodeAttempts; attempt++ {
			r, err := models.NewRequest(uuid.New(), models.NewTransferCode(), requesterID, respondentID, destination, cuis, hash, now)
			if err != nil {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			err = stores.Transfers.Insert(ctx, r)
			if err == nil {
				request = r
				break
			}
			if !errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create transfer")
			}
		}
		if request == nil {
			return dErrors.New(dErrors.CodeInternal, "could not generate a unique transfer code")
		}

		conflicts, err := stores.Transfers.ClaimAnimals(ctx, request.ID, cuis)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim animals")
		}
		if len(conflicts) > 0 {
			slices.Sort(conflicts)
			return dErrors.Wrap(&models.PendingConflictError{CUIs: conflicts}, dErrors.CodeConflict,
				"animals already in a pending transfer")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAnimalAlreadyPending) {
			s.metrics.IncrementPendingConflict()
		}
		s.logger.WarnContext(ctx, "transfer request rejected",
			"requester_id", requesterID,
			"destination_holding", destination,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("transfer_code", request.Code))
	s.metrics.IncrementCreated()
	s.logger.InfoContext(ctx, "transfer requested",
		"transfer_code", request.Code,
		"requester_id", request.RequesterID,
		"respondent_id", request.RespondentID,
		"animals", len(request.AnimalCUIs),
	)

	notified := true
	notice := notification.TransferCreated{
		TransferCode:       request.Code,
		RequesterID:        request.RequesterID,
		RespondentID:       request.RespondentID,
		DestinationHolding: request.DestinationHolding,
		AnimalCUIs:         request.AnimalCUIs,
		VerificationCode:   code,
		ExpiresAt:          request.CreatedAt.Add(s.expiryWindow),
	}
	if nerr := s.notifier.NotifyTransferCreated(ctx, notice); nerr != nil {
		notified = false
		s.metrics.IncrementNotificationFailure(string(notification.KindTransferCreated))
		s.logger.ErrorContext(ctx, "failed to notify respondent",
			"transfer_code", request.Code,
			"respondent_id", request.RespondentID,
			"error", nerr,
		)
	}
	return &CreateResult{Request: request, Notified: notified}, nil
}

func checkDestination(ctx context.Context, stores storage.Stores, code, requesterID string) error {
	h, err := stores.Holdings.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(models.ErrDestinationHolding, dErrors.CodeNotFound, "destination holding not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load destination holding")
	}
	if !h.IsOwnedBy(requesterID) {
		return dErrors.Wrap(models.ErrDestinationHolding, dErrors.CodeNotFound, "destination holding not found")
	}
	return nil
}

// resolveRespondent checks that every animal exists and is active, and that
// all of them belong to a single owner, which it returns.
func resolveRespondent(ctx context.Context, stores storage.Stores, cuis []string) (string, error) {
	animals, err := stores.Animals.FindByCUIs(ctx, cuis)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load animals")
	}
	found := make(map[string]*livestock.Animal, len(animals))
	for _, a := range animals {
		found[a.CUI] = a
	}
	for _, cui := range cuis {
		if _, ok := found[cui]; !ok {
			return "", dErrors.Wrap(models.ErrAnimalNotFound, dErrors.CodeNotFound, fmt.Sprintf("animal %s not found", cui))
		}
	}

	owners := make(map[string]string)
	respondentID := ""
	for _, cui := range cuis {
		a := found[cui]
		if !a.IsActive() {
			return "", dErrors.Wrap(models.ErrAnimalNotActive, dErrors.CodeValidation, fmt.Sprintf("animal %s is not active", cui))
		}
		owner, ok := owners[a.HoldingCode]
		if !ok {
			h, err := stores.Holdings.FindByCode(ctx, a.HoldingCode)
			if err != nil {
				return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holding")
			}
			owner = h.OwnerID
			owners[a.HoldingCode] = owner
		}
		if respondentID == "" {
			respondentID = owner
		} else if owner != respondentID {
			return "", dErrors.Wrap(models.ErrMixedOwnership, dErrors.CodeValidation, "all animals must belong to the same owner")
		}
	}
	return respondentID, nil
}

// findForUpdate loads and locks a request. Requests the actor cannot
// act on are reported as not found.
func findForUpdate(ctx context.Context, stores storage.Stores, code string, allowed func(*models.Request) bool) (*models.Request, error) {
	r, err := stores.Transfers.FindByCodeForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(models.ErrNotFound, dErrors.CodeNotFound, "transfer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transfer")
	}
	if !allowed(r) {
		return nil, dErrors.Wrap(models.ErrNotFound, dErrors.CodeNotFound, "transfer not found")
	}
	return r, nil
}

func updateStatus(ctx context.Context, stores storage.Stores, r *models.Request, now time.Time) error {
	if err := stores.Transfers.UpdateStatusIfPending(ctx, r.ID, r.Status, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.Wrap(models.ErrNotPending, dErrors.CodeInvalidState, "transfer is no longer pending")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update transfer")
	}
	if err := stores.Transfers.ReleaseClaims(ctx, r.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release animals")
	}
	return nil
}

// Approve completes a pending request: the respondent presents the
// verification code, the animals move to the destination holding and their
// claims are released, all in one transaction. Expiry is decided by the
// sweeper alone, so a stale request that has not been swept can still be
// approved.
func (s *Service) Approve(ctx context.Context, transferCode, verificationCode, actorID string) (request *models.Request, err error) {
	ctx, span := tracer.Start(ctx, "transfer.Approve")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("transfer_code", transferCode))

	now := s.clock()
	err = s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		r, err := findForUpdate(ctx, stores, transferCode, func(r *models.Request) bool {
			return r.RespondentID == actorID
		})
		if err != nil {
			return err
		}
		if err := r.CanApprove(); err != nil {
			return err
		}
		if !r.MatchesVerificationCode(verificationCode) {
			s.metrics.IncrementBadVerificationCode()
			return dErrors.Wrap(models.ErrBadVerificationCode, dErrors.CodeForbidden, "verification code is incorrect")
		}
		if err := r.Approve(now); err != nil {
			return err
		}
		if err := updateStatus(ctx, stores, r, now); err != nil {
			return err
		}
		if _, err := stores.Animals.ReassignHolding(ctx, r.AnimalCUIs, r.DestinationHolding, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to move animals")
		}
		request = r
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "transfer approval failed",
			"transfer_code", transferCode,
			"actor_id", actorID,
			"error", err,
		)
		return nil, err
	}

	s.metrics.IncrementResolved(string(models.StatusApproved), 1)
	s.logger.InfoContext(ctx, "transfer approved",
		"transfer_code", request.Code,
		"respondent_id", request.RespondentID,
		"destination_holding", request.DestinationHolding,
		"animals", len(request.AnimalCUIs),
	)
	return request, nil
}

// Reject lets the respondent decline a pending request.
func (s *Service) Reject(ctx context.Context, transferCode, actorID string) (request *models.Request, err error) {
	ctx, span := tracer.Start(ctx, "transfer.Reject")
	defer func() { endSpan(span, err) }()

	now := s.clock()
	err = s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		r, err := findForUpdate(ctx, stores, transferCode, func(r *models.Request) bool {
			return r.RespondentID == actorID
		})
		if err != nil {
			return err
		}
		if err := r.Reject(now); err != nil {
			return err
		}
		if err := updateStatus(ctx, stores, r, now); err != nil {
			return err
		}
		request = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementResolved(string(models.StatusRejected), 1)
	s.logger.InfoContext(ctx, "transfer rejected",
		"transfer_code", request.Code,
		"respondent_id", request.RespondentID,
	)
	return request, nil
}

// ResetCode issues a new verification code for a pending request and sends
// it to the respondent. Either party may ask for it; the old code stops
// working.
func (s *Service) ResetCode(ctx context.Context, transferCode, actorID string) (result *CreateResult, err error) {
	ctx, span := tracer.Start(ctx, "transfer.ResetCode")
	defer func() { endSpan(span, err) }()

	code, err := models.NewVerificationCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification code")
	}
	hash, err := models.HashVerificationCode(code, s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash verification code")
	}

	now := s.clock()
	var request *models.Request
	err = s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		r, err := findForUpdate(ctx, stores, transferCode, func(r *models.Request) bool {
			return r.RespondentID == actorID || r.RequesterID == actorID
		})
		if err != nil {
			return err
		}
		if err := r.SetVerificationHash(hash, now); err != nil {
			return err
		}
		if err := stores.Transfers.UpdateVerificationHash(ctx, r.ID, r.VerificationHash, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset verification code")
		}
		request = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "verification code reset",
		"transfer_code", request.Code,
		"actor_id", actorID,
	)
	notified := true
	if nerr := s.notifier.NotifyResetCode(ctx, notification.ResetCode{
		TransferCode:     request.Code,
		RespondentID:     request.RespondentID,
		VerificationCode: code,
	}); nerr != nil {
		notified = false
		s.metrics.IncrementNotificationFailure(string(notification.KindResetCode))
		s.logger.ErrorContext(ctx, "failed to notify respondent",
			"transfer_code", request.Code,
			"respondent_id", request.RespondentID,
			"error", nerr,
		)
	}
	return &CreateResult{Request: request, Notified: notified}, nil
}

// ExpireStale moves every pending request created before now-window to
// expired and releases its animals. Requests already resolved are untouched,
// so repeated runs are harmless.
func (s *Service) ExpireStale(ctx context.Context, now time.Time, window time.Duration) (n int, err error) {
	ctx, span := tracer.Start(ctx, "transfer.ExpireStale")
	defer func() { endSpan(span, err) }()

	cutoff := now.Add(-window)
	var expired []uuid.UUID
	err = s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		stale, err := stores.Transfers.FindPendingBeforeForUpdate(ctx, cutoff)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stale transfers")
		}
		for _, r := range stale {
			if !r.IsStale(now, window) || r.Expire(now) != nil {
				continue
			}
			if err := stores.Transfers.UpdateStatusIfPending(ctx, r.ID, r.Status, now); err != nil {
				if errors.Is(err, sentinel.ErrInvalidState) {
					continue
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire transfer")
			}
			expired = append(expired, r.ID)
		}
		if len(expired) == 0 {
			return nil
		}
		if err := stores.Transfers.ReleaseClaims(ctx, expired...); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release animals")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("expired", len(expired)))
	s.metrics.IncrementResolved(string(models.StatusExpired), len(expired))
	return len(expired), nil
}

// ListForUser returns the requests userID sent or received, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.Request, error) {
	var requests []*models.Request
	err := s.tx.RunInTx(ctx, func(stores storage.Stores) error {
		var err error
		requests, err = stores.Transfers.ListForUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transfers")
	}
	return requests, nil
}
