package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/application/repayment"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/testutil"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

func newTestRepaymentHandler() (*RepaymentHandler, *mockRepaymentService) {
	svc := new(mockRepaymentService)
	return NewRepaymentHandler(svc, testutil.NewMockLogger()), svc
}

func TestListSchedule(t *testing.T) {
	h, svc := newTestRepaymentHandler()
	id := uuid.New()
	svc.On("ListSchedule", mock.Anything, id).Return([]*loan.Repayment{
		{ID: uuid.New(), LoanID: id, EMINumber: 1, EMIAmount: decimal.RequireFromString("8792.06")},
		{ID: uuid.New(), LoanID: id, EMINumber: 2, EMIAmount: decimal.RequireFromString("8792.06")},
	}, nil)

	w := doJSON(newTestRouter(h), http.MethodGet, "/api/v1/loans/"+id.String()+"/schedule", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Items []loan.Repayment `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Items[0].EMIAmount.Equal(decimal.RequireFromString("8792.06")))
}

func TestGetRepayment_NotFound(t *testing.T) {
	h, svc := newTestRepaymentHandler()
	id := uuid.New()
	svc.On("GetRepayment", mock.Anything, id).Return(nil, errors.New(errors.ErrCodeRepaymentNotFound, "repayment not found"))

	w := doJSON(newTestRouter(h), http.MethodGet, "/api/v1/repayments/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordPayment(t *testing.T) {
	h, svc := newTestRepaymentHandler()
	id := uuid.New()
	loanID := uuid.New()
	svc.On("RecordPayment", mock.Anything, mock.MatchedBy(func(r repayment.RecordPaymentRequest) bool {
		return r.RepaymentID == id && r.Amount.Equal(decimal.RequireFromString("8792.06")) && r.Method == "upi" && r.Reference == "UPI-1"
	})).Return(&loan.PaymentResult{
		Repayment:      &loan.Repayment{ID: id, LoanID: loanID, Status: loan.RepaymentCompleted},
		Loan:           &loan.Loan{ID: loanID, Status: loan.StatusInRepayment},
		PreviousStatus: loan.StatusDelinquent,
		FirstPayment:   true,
		Cured:          true,
	}, nil)

	w := doJSON(newTestRouter(h), http.MethodPost, "/api/v1/repayments/"+id.String()+"/payments",
		`{"amount":"8792.06","payment_method":"upi","payment_reference":"UPI-1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cured)
	assert.Equal(t, loan.StatusDelinquent, resp.PreviousStatus)
	assert.Equal(t, loan.RepaymentCompleted, resp.Repayment.Status)
	svc.AssertExpectations(t)
}

func TestRecordPayment_Validation(t *testing.T) {
	h, svc := newTestRepaymentHandler()
	id := uuid.New()
	r := newTestRouter(h)

	w := doJSON(r, http.MethodPost, "/api/v1/repayments/"+id.String()+"/payments", `{"amount":"100"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("RecordPayment", mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeRepaymentSettled, "repayment already settled"))
	w = doJSON(r, http.MethodPost, "/api/v1/repayments/"+id.String()+"/payments", `{"amount":"100","payment_method":"upi"}`)
	assert.Equal(t, errors.HTTPStatusForCode(errors.ErrCodeRepaymentSettled), w.Code)
	assert.Equal(t, string(errors.ErrCodeRepaymentSettled), decodeError(t, w).Code)
}

//Personal.AI order the ending
