package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/livestock/service"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
	"github.com/NogaLive/SNIUGB/pkg/platform/httputil"
	authmw "github.com/NogaLive/SNIUGB/pkg/platform/middleware/auth"
	"github.com/NogaLive/SNIUGB/pkg/requestcontext"
)

// Service defines the livestock operations exposed over HTTP.
type Service interface {
	CreateHolding(ctx context.Context, actorID, name, region, location string) (*models.Holding, error)
	ListHoldings(ctx context.Context, actorID string) ([]*models.Holding, error)
	RegisterAnimal(ctx context.Context, actorID string, req service.RegisterAnimalRequest) (*models.Animal, error)
	ListAnimals(ctx context.Context, actorID, holdingCode string, status models.AnimalStatus) ([]*models.Animal, error)
	GetAnimal(ctx context.Context, actorID, cui string) (*models.Animal, error)
	TrashAnimal(ctx context.Context, actorID, cui string) (*models.Animal, error)
	RestoreAnimal(ctx context.Context, actorID, cui string) (*models.Animal, error)
	RecordHealthEvent(ctx context.Context, actorID string, req service.RecordHealthEventRequest) (*models.HealthEvent, error)
	HealthHistory(ctx context.Context, actorID, cui string) ([]*models.HealthEvent, error)
	ListEventTypes(ctx context.Context, group models.EventGroup) ([]models.EventType, error)
	ResetHealth(ctx context.Context, adminID string, cuis []string) (int, error)
}

// Handler wires holding, animal and health endpoints to the livestock service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated endpoints. RequireAuth must already be
// applied to r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/holdings", h.HandleCreateHolding)
	r.Get("/holdings", h.HandleListHoldings)
	r.Post("/holdings/{code}/animals", h.HandleRegisterAnimal)
	r.Get("/holdings/{code}/animals", h.HandleListAnimals)

	r.Get("/animals/{cui}", h.HandleGetAnimal)
	r.Delete("/animals/{cui}", h.HandleTrashAnimal)
	r.Post("/animals/{cui}/restore", h.HandleRestoreAnimal)
	r.Get("/animals/{cui}/health-events", h.HandleHealthHistory)
	r.With(authmw.RequireAdmin(h.logger)).Post("/animals/health-reset", h.HandleHealthReset)

	r.Post("/health-events", h.HandleRecordHealthEvent)
	r.Get("/event-types/{group}", h.HandleListEventTypes)
}

// RegisterPublic mounts endpoints that need no token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/cui/{cui}/verify", h.HandleVerifyCUI)
}

// actor returns the caller's national ID or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return userID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", chimw.GetReqID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) HandleCreateHolding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateHoldingRequest](w, r, h.logger, ctx, chimw.GetReqID(ctx))
	if !ok {
		return
	}
	holding, err := h.service.CreateHolding(ctx, userID, req.Name, req.Region, req.Location)
	if err != nil {
		h.fail(ctx, w, "create holding failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, holding)
}

func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	holdings, err := h.service.ListHoldings(ctx, userID)
	if err != nil {
		h.fail(ctx, w, "list holdings failed", err, "user_id", userID)
		return
	}
	if holdings == nil {
		holdings = []*models.Holding{}
	}
	httputil.WriteJSON(w, http.StatusOK, holdings)
}

func (h *Handler) HandleRegisterAnimal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterAnimalRequest](w, r, h.logger, ctx, chimw.GetReqID(ctx))
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")
	animal, err := h.service.RegisterAnimal(ctx, userID, req.toService(code))
	if err != nil {
		h.fail(ctx, w, "register animal failed", err, "user_id", userID, "holding_code", code)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, animal)
}

func (h *Handler) HandleListAnimals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	status := models.AnimalStatus(strings.ToLower(r.URL.Query().Get("status")))
	animals, err := h.service.ListAnimals(ctx, userID, chi.URLParam(r, "code"), status)
	if err != nil {
		h.fail(ctx, w, "list animals failed", err, "user_id", userID)
		return
	}
	if animals == nil {
		animals = []*models.Animal{}
	}
	httputil.WriteJSON(w, http.StatusOK, animals)
}

func (h *Handler) HandleGetAnimal(w http.ResponseWriter, r *http.Request) {
	h.animalAction(w, r, "get animal failed", h.service.GetAnimal)
}

func (h *Handler) HandleTrashAnimal(w http.ResponseWriter, r *http.Request) {
	h.animalAction(w, r, "trash animal failed", h.service.TrashAnimal)
}

func (h *Handler) HandleRestoreAnimal(w http.ResponseWriter, r *http.Request) {
	h.animalAction(w, r, "restore animal failed", h.service.RestoreAnimal)
}

func (h *Handler) animalAction(w http.ResponseWriter, r *http.Request, msg string,
	fn func(ctx context.Context, actorID, cui string) (*models.Animal, error)) {
	ctx := r.Context()
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	cui := chi.URLParam(r, "cui")
	animal, err := fn(ctx, userID, cui)
	if err != nil {
		h.fail(ctx, w, msg, err, "user_id", userID, "cui", cui)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, animal)
}

func (h *Handler) HandleHealthHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	cui := chi.URLParam(r, "cui")
	events, err := h.service.HealthHistory(ctx, userID, cui)
	if err != nil {
		h.fail(ctx, w, "health history failed", err, "user_id", userID, "cui", cui)
		return
	}
	if events == nil {
		events = []*models.HealthEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) HandleRecordHealthEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecordHealthEventRequest](w, r, h.logger, ctx, chimw.GetReqID(ctx))
	if !ok {
		return
	}
	event, err := h.service.RecordHealthEvent(ctx, userID, req.toService())
	if err != nil {
		h.fail(ctx, w, "record health event failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) HandleListEventTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group := models.EventGroup(strings.ToUpper(chi.URLParam(r, "group")))
	types, err := h.service.ListEventTypes(ctx, group)
	if err != nil {
		h.fail(ctx, w, "list event types failed", err, "group", group)
		return
	}
	if types == nil {
		types = []models.EventType{}
	}
	httputil.WriteJSON(w, http.StatusOK, types)
}

func (h *Handler) HandleHealthReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[HealthResetRequest](w, r, h.logger, ctx, chimw.GetReqID(ctx))
	if !ok {
		return
	}
	n, err := h.service.ResetHealth(ctx, userID, req.AnimalCUIs)
	if err != nil {
		h.fail(ctx, w, "health reset failed", err, "admin_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HealthResetResponse{Updated: n})
}

// HandleVerifyCUI reports whether a CUI is well formed and its check digit
// matches. It does not consult the registry.
func (h *Handler) HandleVerifyCUI(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, verifyResponse(chi.URLParam(r, "cui")))
}
