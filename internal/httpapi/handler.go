// Package httpapi serves the battle service and profile administration over
// HTTP/JSON using gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shinobi/internal/battle"
	"github.com/cory-johannsen/shinobi/internal/game/character"
	"github.com/cory-johannsen/shinobi/internal/game/engagement"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
	"github.com/cory-johannsen/shinobi/internal/storage/postgres"
)

// healthTimeout bounds the database ping behind /healthz.
const healthTimeout = 2 * time.Second

// ProfileStore is the profile persistence the API administers.
type ProfileStore interface {
	Create(ctx context.Context, p *character.Profile) (*character.Profile, error)
	GetByID(ctx context.Context, id string) (*character.Profile, error)
	SaveHealth(ctx context.Context, id string, hp int) error
	ActivatePower(ctx context.Context, id, kind string, tier int, at time.Time) error
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context, timeout time.Duration) error
}

// Handler holds the dependencies of every route.
type Handler struct {
	svc      *battle.Service
	profiles ProfileStore
	powers   *powerstate.Registry
	health   HealthChecker
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a Handler.
//
// Precondition: svc, profiles and powers must be non-nil. A nil health checker
// makes /healthz always report ok; a nil logger disables logging.
// Postcondition: Returns a non-nil Handler.
func NewHandler(svc *battle.Service, profiles ProfileStore, powers *powerstate.Registry, health HealthChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, profiles: profiles, powers: powers, health: health, logger: logger, now: time.Now}
}

func errorBody(msg string) gin.H { return gin.H{"error": msg} }

// fail writes the status matching err. Unexpected errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, battle.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, postgres.ErrProfileNotFound), errors.Is(err, postgres.ErrEngagementNotFound):
		c.JSON(http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, postgres.ErrProfileExists), errors.Is(err, engagement.ErrStale):
		c.JSON(http.StatusConflict, errorBody(err.Error()))
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Simulate handles POST /v1/simulate.
func (h *Handler) Simulate(c *gin.Context) {
	var params battle.SimulateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	req, err := params.Request()
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.svc.Simulate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Engage handles POST /v1/engagements.
func (h *Handler) Engage(c *gin.Context) {
	var params battle.EngageParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	req, err := params.Request()
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.Engage(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GetEngagement handles GET /v1/engagements/:id.
func (h *Handler) GetEngagement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid engagement id"))
		return
	}
	rec, err := h.svc.Engagement(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// History handles GET /v1/profiles/:id/engagements?limit=n.
func (h *Handler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	recs, err := h.svc.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"engagements": recs})
}

// CreateProfile handles POST /v1/profiles.
func (h *Handler) CreateProfile(c *gin.Context) {
	var p character.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := p.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	out, err := h.profiles.Create(c.Request.Context(), &p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GetProfile handles GET /v1/profiles/:id.
func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.profiles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type healthBody struct {
	CurrentHealth *int `json:"current_health"`
}

// SetHealth handles PUT /v1/profiles/:id/health.
func (h *Handler) SetHealth(c *gin.Context) {
	var body healthBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if body.CurrentHealth == nil || *body.CurrentHealth < 0 {
		c.JSON(http.StatusBadRequest, errorBody("current_health must be a non-negative integer"))
		return
	}
	if err := h.profiles.SaveHealth(c.Request.Context(), c.Param("id"), *body.CurrentHealth); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type activateBody struct {
	Kind string `json:"kind"`
	Tier int    `json:"tier"`
}

// ActivatePower handles POST /v1/profiles/:id/powers. The activation time is
// the server's clock.
func (h *Handler) ActivatePower(c *gin.Context) {
	var body activateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if body.Kind != powerstate.CursedSeal && body.Kind != powerstate.AwakenedEye {
		c.JSON(http.StatusBadRequest, errorBody("unknown power state kind"))
		return
	}
	def, ok := h.powers.Get(body.Kind)
	if !ok {
		c.JSON(http.StatusBadRequest, errorBody("power state kind is not loaded"))
		return
	}
	if _, ok := def.Tier(body.Tier); !ok {
		c.JSON(http.StatusBadRequest, errorBody("unknown power state tier"))
		return
	}
	if err := h.profiles.ActivatePower(c.Request.Context(), c.Param("id"), body.Kind, body.Tier, h.now()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Health(c.Request.Context(), healthTimeout); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
