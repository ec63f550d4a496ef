package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/EduLoan-Engine/internal/domain/scoring"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ReferenceWriter persists the borrower, course and provider records.
type ReferenceWriter interface {
	UpsertUser(ctx context.Context, u *scoring.User) error
	UpsertLearnerProfile(ctx context.Context, p *scoring.LearnerProfile) error
	UpsertCourse(ctx context.Context, c *scoring.Course) error
	UpsertProvider(ctx context.Context, p *scoring.TrainingProvider) error
}

// ReferenceReader is the (usually cached) read side of the same records.
type ReferenceReader interface {
	GetUser(ctx context.Context, id string) (*scoring.User, error)
	GetLearnerProfile(ctx context.Context, userID string) (*scoring.LearnerProfile, error)
	GetCourse(ctx context.Context, id string) (*scoring.Course, error)
	GetProvider(ctx context.Context, id string) (*scoring.TrainingProvider, error)
}

// CacheInvalidator drops a cached record after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, kind, id string)
}

// ProviderScorer recomputes a provider's TPScore.
type ProviderScorer interface {
	ScoreTP(ctx context.Context, tp *scoring.TrainingProvider) (*scoring.TPResult, error)
}

// ReferenceHandler maintains the reference data origination scores against.
type ReferenceHandler struct {
	writer      ReferenceWriter
	reader      ReferenceReader
	invalidator CacheInvalidator
	scorer      ProviderScorer
	logger      logging.Logger
}

// NewReferenceHandler creates a new ReferenceHandler. invalidator may be nil
// when reads are not cached.
func NewReferenceHandler(w ReferenceWriter, r ReferenceReader, inv CacheInvalidator, scorer ProviderScorer, logger logging.Logger) *ReferenceHandler {
	return &ReferenceHandler{writer: w, reader: r, invalidator: inv, scorer: scorer, logger: logger}
}

// RegisterRoutes mounts the reference data routes on rg.
func (h *ReferenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	ref := rg.Group("/reference")
	ref.GET("/users/:id", h.GetUser)
	ref.PUT("/users/:id", h.PutUser)
	ref.GET("/learner-profiles/:id", h.GetLearnerProfile)
	ref.PUT("/learner-profiles/:id", h.PutLearnerProfile)
	ref.GET("/courses/:id", h.GetCourse)
	ref.PUT("/courses/:id", h.PutCourse)
	ref.GET("/providers/:id", h.GetProvider)
	ref.PUT("/providers/:id", h.PutProvider)
	ref.POST("/providers/:id/score", h.ScoreProvider)
}

func (h *ReferenceHandler) invalidate(c *gin.Context, kind, id string) {
	if h.invalidator != nil {
		h.invalidator.Invalidate(c.Request.Context(), kind, id)
	}
}

func (h *ReferenceHandler) GetUser(c *gin.Context) {
	u, err := h.reader.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PutUser handles PUT /api/v1/reference/users/:id. The path id wins over
// any id in the body.
func (h *ReferenceHandler) PutUser(c *gin.Context) {
	var u scoring.User
	if err := bindJSON(c, &u); err != nil {
		respondError(c, h.logger, err)
		return
	}
	u.ID = c.Param("id")
	if err := h.writer.UpsertUser(c.Request.Context(), &u); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.invalidate(c, "user", u.ID)
	c.JSON(http.StatusOK, &u)
}

// GetLearnerProfile returns 404 when the learner has no profile yet.
func (h *ReferenceHandler) GetLearnerProfile(c *gin.Context) {
	p, err := h.reader.GetLearnerProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if p == nil {
		respondError(c, h.logger, errors.New(errors.ErrCodeSubjectNotFound, "learner profile not found").WithDetail("id="+c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ReferenceHandler) PutLearnerProfile(c *gin.Context) {
	var p scoring.LearnerProfile
	if err := bindJSON(c, &p); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p.UserID = c.Param("id")
	if err := h.writer.UpsertLearnerProfile(c.Request.Context(), &p); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.invalidate(c, "profile", p.UserID)
	c.JSON(http.StatusOK, &p)
}

func (h *ReferenceHandler) GetCourse(c *gin.Context) {
	course, err := h.reader.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *ReferenceHandler) PutCourse(c *gin.Context) {
	var course scoring.Course
	if err := bindJSON(c, &course); err != nil {
		respondError(c, h.logger, err)
		return
	}
	course.ID = c.Param("id")
	if err := h.writer.UpsertCourse(c.Request.Context(), &course); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.invalidate(c, "course", course.ID)
	c.JSON(http.StatusOK, &course)
}

func (h *ReferenceHandler) GetProvider(c *gin.Context) {
	p, err := h.reader.GetProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ReferenceHandler) PutProvider(c *gin.Context) {
	var p scoring.TrainingProvider
	if err := bindJSON(c, &p); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p.ID = c.Param("id")
	if err := h.writer.UpsertProvider(c.Request.Context(), &p); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.invalidate(c, "provider", p.ID)
	c.JSON(http.StatusOK, &p)
}

// ScoreProvider handles POST /api/v1/reference/providers/:id/score and
// recomputes the provider's TPScore from its stored metrics.
func (h *ReferenceHandler) ScoreProvider(c *gin.Context) {
	p, err := h.reader.GetProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	res, err := h.scorer.ScoreTP(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Provider rescored",
		logging.String("provider_id", p.ID),
		logging.Float64("tp_score", res.Score))
	c.JSON(http.StatusOK, res)
}

//Personal.AI order the ending
