package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/application/repayment"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
)

// RepaymentHandler serves EMI schedules and incoming payments.
type RepaymentHandler struct {
	svc    repayment.Service
	logger logging.Logger
}

// NewRepaymentHandler creates a new RepaymentHandler.
func NewRepaymentHandler(svc repayment.Service, logger logging.Logger) *RepaymentHandler {
	return &RepaymentHandler{svc: svc, logger: logger}
}

// PaymentRequest is the request body for recording a payment against one
// installment.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"payment_method" binding:"required"`
	Reference string          `json:"payment_reference"`
}

// PaymentResponse is the rendering of a loan.PaymentResult.
type PaymentResponse struct {
	Repayment      *loan.Repayment `json:"repayment"`
	Loan           *loan.Loan      `json:"loan"`
	PreviousStatus loan.Status     `json:"previous_status"`
	FirstPayment   bool            `json:"first_payment"`
	Cured          bool            `json:"cured"`
	Closed         bool            `json:"closed"`
}

// RegisterRoutes mounts the repayment routes on rg.
func (h *RepaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/loans/:id/schedule", h.ListSchedule)
	rg.GET("/repayments/:id", h.GetRepayment)
	rg.POST("/repayments/:id/payments", h.RecordPayment)
}

// ListSchedule handles GET /api/v1/loans/:id/schedule
func (h *RepaymentHandler) ListSchedule(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	rs, err := h.svc.ListSchedule(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if rs == nil {
		rs = []*loan.Repayment{}
	}
	c.JSON(http.StatusOK, gin.H{"items": rs})
}

// GetRepayment handles GET /api/v1/repayments/:id
func (h *RepaymentHandler) GetRepayment(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	r, err := h.svc.GetRepayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// RecordPayment handles POST /api/v1/repayments/:id/payments
func (h *RepaymentHandler) RecordPayment(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req PaymentRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.svc.RecordPayment(c.Request.Context(), repayment.RecordPaymentRequest{
		RepaymentID: id,
		Amount:      req.Amount,
		Method:      req.Method,
		Reference:   req.Reference,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PaymentResponse{
		Repayment:      res.Repayment,
		Loan:           res.Loan,
		PreviousStatus: res.PreviousStatus,
		FirstPayment:   res.FirstPayment,
		Cured:          res.Cured,
		Closed:         res.Closed,
	})
}

//Personal.AI order the ending
