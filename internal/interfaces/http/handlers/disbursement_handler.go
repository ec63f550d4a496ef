package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/EduLoan-Engine/internal/application/disbursement"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// DisbursementHandler serves activation, milestone verification and the
// bank settlement webhook.
type DisbursementHandler struct {
	svc    disbursement.Service
	logger logging.Logger
}

// NewDisbursementHandler creates a new DisbursementHandler.
func NewDisbursementHandler(svc disbursement.Service, logger logging.Logger) *DisbursementHandler {
	return &DisbursementHandler{svc: svc, logger: logger}
}

// AuthorizationResponse is the rendering of a loan.Authorization.
type AuthorizationResponse struct {
	Loan           *loan.Loan         `json:"loan"`
	Disbursement   *loan.Disbursement `json:"disbursement,omitempty"`
	Milestone      int                `json:"milestone"`
	Certified      bool               `json:"certified"`
	FullyDisbursed bool               `json:"fully_disbursed"`
}

// RepaymentStartResponse is returned when a loan enters repayment.
type RepaymentStartResponse struct {
	Loan     *loan.Loan        `json:"loan"`
	Schedule []*loan.Repayment `json:"schedule"`
}

func toAuthorizationResponse(a *loan.Authorization) AuthorizationResponse {
	return AuthorizationResponse{
		Loan:           a.Loan,
		Disbursement:   a.Disbursement,
		Milestone:      a.Milestone,
		Certified:      a.Certified,
		FullyDisbursed: a.FullyDisbursed,
	}
}

// RegisterRoutes mounts the disbursement routes on rg.
func (h *DisbursementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/loans/:id/activate", h.Activate)
	rg.POST("/loans/:id/milestones/:number/verify", h.VerifyMilestone)
	rg.GET("/loans/:id/disbursements", h.ListDisbursements)
	rg.POST("/loans/:id/moratorium", h.EnterMoratorium)
	rg.POST("/loans/:id/start-repayment", h.StartRepayment)

	rg.GET("/disbursements/:id", h.GetDisbursement)
	rg.POST("/disbursements/:id/retry", h.RetrySettlement)

	rg.POST("/settlements/callbacks", h.SettlementCallback)
}

// Activate handles POST /api/v1/loans/:id/activate
func (h *DisbursementHandler) Activate(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	auth, err := h.svc.Activate(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAuthorizationResponse(auth))
}

// VerifyMilestone handles POST /api/v1/loans/:id/milestones/:number/verify
func (h *DisbursementHandler) VerifyMilestone(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n < 0 {
		respondError(c, h.logger, errors.InvalidParam("milestone number must be a non-negative integer").WithDetail(c.Param("number")))
		return
	}
	var ev loan.Evidence
	if err := bindJSON(c, &ev); err != nil {
		respondError(c, h.logger, err)
		return
	}

	auth, err := h.svc.VerifyMilestone(c.Request.Context(), id, n, ev)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAuthorizationResponse(auth))
}

// ListDisbursements handles GET /api/v1/loans/:id/disbursements
func (h *DisbursementHandler) ListDisbursements(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	ds, err := h.svc.ListDisbursements(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if ds == nil {
		ds = []*loan.Disbursement{}
	}
	c.JSON(http.StatusOK, gin.H{"items": ds})
}

// EnterMoratorium handles POST /api/v1/loans/:id/moratorium
func (h *DisbursementHandler) EnterMoratorium(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	l, err := h.svc.EnterMoratorium(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// StartRepayment handles POST /api/v1/loans/:id/start-repayment
func (h *DisbursementHandler) StartRepayment(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	l, schedule, err := h.svc.StartRepayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, RepaymentStartResponse{Loan: l, Schedule: schedule})
}

// GetDisbursement handles GET /api/v1/disbursements/:id
func (h *DisbursementHandler) GetDisbursement(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	d, err := h.svc.GetDisbursement(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// RetrySettlement handles POST /api/v1/disbursements/:id/retry
func (h *DisbursementHandler) RetrySettlement(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	d, err := h.svc.RetrySettlement(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, d)
}

// SettlementCallback handles POST /api/v1/settlements/callbacks, the bank's
// webhook. Redelivered verdicts are absorbed by the service.
func (h *DisbursementHandler) SettlementCallback(c *gin.Context) {
	var cb disbursement.SettlementCallback
	if err := bindJSON(c, &cb); err != nil {
		respondError(c, h.logger, err)
		return
	}
	d, err := h.svc.HandleSettlementCallback(c.Request.Context(), cb)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Settlement callback received over HTTP",
		logging.DisbursementID(d.ID.String()),
		logging.String("status", string(d.Status)))
	c.JSON(http.StatusOK, d)
}

//Personal.AI order the ending
