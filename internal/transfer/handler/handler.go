package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/NogaLive/SNIUGB/internal/transfer/models"
	"github.com/NogaLive/SNIUGB/internal/transfer/service"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
	"github.com/NogaLive/SNIUGB/pkg/platform/httputil"
	"github.com/NogaLive/SNIUGB/pkg/requestcontext"
)

// Service defines the transfer operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, requesterID string, cuis []string, destination string) (*service.CreateResult, error)
	Approve(ctx context.Context, transferCode, verificationCode, actorID string) (*models.Request, error)
	Reject(ctx context.Context, transferCode, actorID string) (*models.Request, error)
	ResetCode(ctx context.Context, transferCode, actorID string) (*service.CreateResult, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Request, error)
}

// Handler wires transfer endpoints to the transfer service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	approveGuard []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithApproveGuard wraps POST /transfers/approve, typically with an attempt limiter.
func WithApproveGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.approveGuard = append(h.approveGuard, mw)
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts transfer endpoints. RequireAuth must already be applied to r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/transfers", h.HandleCreate)
	r.With(h.approveGuard...).Post("/transfers/approve", h.HandleApprove)
	r.Post("/transfers/{code}/reject", h.HandleReject)
	r.Post("/transfers/{code}/reset-code", h.HandleResetCode)
	r.Get("/transfers/me", h.HandleListMine)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return userID, true
}

// conflictBody adds the offending CUIs to the usual error envelope.
type conflictBody struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description"`
	AnimalCUIs       []string `json:"animal_cuis"`
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", chimw.GetReqID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}

	var conflict *models.PendingConflictError
	if errors.As(err, &conflict) {
		httputil.WriteJSON(w, http.StatusConflict, conflictBody{
			Error:            string(dErrors.CodeConflict),
			ErrorDescription: models.ErrAnimalAlreadyPending.Error(),
			AnimalCUIs:       conflict.CUIs,
		})
		return
	}
	httputil.WriteError(w, err)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateTransferRequest](w, r, h.logger, ctx, chimw.GetReqID(ctx))
	if !ok {
		return
	}
	res, err := h.service.Create(ctx, userID, req.AnimalCUIs, req.DestinationHolding)
	if err != nil {
		h.writeError(ctx, w, "create transfer failed", err, "user_id", userID)
		return
	}
	resp := toResponse(res.Request)
	resp.Notified = &res.Notified
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApproveTransferRequest](w, r, h.logger, ctx, chimw.GetReqID(ctx))
	if !ok {
		return
	}
	approved, err := h.service.Approve(ctx, req.TransferCode, req.VerificationCode, userID)
	if err != nil {
		h.writeError(ctx, w, "approve transfer failed", err, "user_id", userID, "transfer_code", req.TransferCode)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(approved))
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	code := strings.ToUpper(chi.URLParam(r, "code"))
	rejected, err := h.service.Reject(ctx, code, userID)
	if err != nil {
		h.writeError(ctx, w, "reject transfer failed", err, "user_id", userID, "transfer_code", code)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(rejected))
}

func (h *Handler) HandleResetCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	code := strings.ToUpper(chi.URLParam(r, "code"))
	res, err := h.service.ResetCode(ctx, code, userID)
	if err != nil {
		h.writeError(ctx, w, "reset verification code failed", err, "user_id", userID, "transfer_code", code)
		return
	}
	resp := toResponse(res.Request)
	resp.Notified = &res.Notified
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	requests, err := h.service.ListForUser(ctx, userID)
	if err != nil {
		h.writeError(ctx, w, "list transfers failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(requests))
}
