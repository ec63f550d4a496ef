package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/EduLoan-Engine/internal/application/origination"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// LoanHandler serves application intake and the bank review flow.
type LoanHandler struct {
	svc    origination.Service
	logger logging.Logger
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(svc origination.Service, logger logging.Logger) *LoanHandler {
	return &LoanHandler{svc: svc, logger: logger}
}

// CancelRequest is the request body for cancelling an application.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RegisterRoutes mounts the loan routes on rg.
func (h *LoanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	loans := rg.Group("/loans")
	loans.POST("", h.Apply)
	loans.GET("", h.List)
	loans.GET("/:id", h.Get)
	loans.POST("/:id/submit", h.Submit)
	loans.POST("/:id/review", h.MarkUnderReview)
	loans.POST("/:id/send-to-bank", h.SendToBank)
	loans.POST("/:id/bank-decision", h.RecordBankDecision)
	loans.POST("/:id/cancel", h.Cancel)
}

// Apply handles POST /api/v1/loans. An ineligible borrower gets 200 with
// recommendations and no loan; an eligible one gets 201.
func (h *LoanHandler) Apply(c *gin.Context) {
	var req origination.ApplyRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.svc.Apply(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if res.Loan != nil {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// List handles GET /api/v1/loans?status=&learner_id=&provider_id=&page=&page_size=
func (h *LoanHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)
	filter := loan.ListFilter{
		LearnerID:  c.Query("learner_id"),
		ProviderID: c.Query("provider_id"),
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	}
	for _, s := range c.QueryArray("status") {
		st := loan.Status(s)
		if !st.IsValid() {
			respondError(c, h.logger, errors.InvalidParam("unknown loan status").WithDetail(s))
			return
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	loans, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if loans == nil {
		loans = []*loan.Loan{}
	}
	c.JSON(http.StatusOK, ListResponse{Items: loans, Total: total, Page: page, PageSize: pageSize})
}

// Get handles GET /api/v1/loans/:id
func (h *LoanHandler) Get(c *gin.Context) {
	h.withLoan(c, h.svc.Get)
}

func (h *LoanHandler) Submit(c *gin.Context) {
	h.withLoan(c, h.svc.Submit)
}

func (h *LoanHandler) MarkUnderReview(c *gin.Context) {
	h.withLoan(c, h.svc.MarkUnderReview)
}

func (h *LoanHandler) SendToBank(c *gin.Context) {
	h.withLoan(c, h.svc.SendToBank)
}

// RecordBankDecision handles POST /api/v1/loans/:id/bank-decision
func (h *LoanHandler) RecordBankDecision(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req origination.BankDecision
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	l, err := h.svc.RecordBankDecision(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// Cancel handles POST /api/v1/loans/:id/cancel
func (h *LoanHandler) Cancel(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req CancelRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	l, err := h.svc.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// withLoan runs a single-id operation and renders the resulting loan.
func (h *LoanHandler) withLoan(c *gin.Context, fn func(context.Context, uuid.UUID) (*loan.Loan, error)) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	l, err := fn(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

//Personal.AI order the ending
