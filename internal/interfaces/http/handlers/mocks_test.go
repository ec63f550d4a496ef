package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/application/disbursement"
	"github.com/turtacn/EduLoan-Engine/internal/application/origination"
	"github.com/turtacn/EduLoan-Engine/internal/application/repayment"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Mock Origination Service ---

type mockOriginationService struct {
	mock.Mock
}

func (m *mockOriginationService) loanResult(args mock.Arguments) (*loan.Loan, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Loan), args.Error(1)
}

func (m *mockOriginationService) Apply(ctx context.Context, req origination.ApplyRequest) (*origination.ApplyResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*origination.ApplyResult), args.Error(1)
}

func (m *mockOriginationService) Submit(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, id))
}

func (m *mockOriginationService) MarkUnderReview(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, id))
}

func (m *mockOriginationService) SendToBank(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, id))
}

func (m *mockOriginationService) RecordBankDecision(ctx context.Context, id uuid.UUID, d origination.BankDecision) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, id, d))
}

func (m *mockOriginationService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, id, reason))
}

func (m *mockOriginationService) Get(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, id))
}

func (m *mockOriginationService) List(ctx context.Context, f loan.ListFilter) ([]*loan.Loan, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*loan.Loan), args.Get(1).(int64), args.Error(2)
}

// --- Mock Disbursement Service ---

type mockDisbursementService struct {
	mock.Mock
}

func (m *mockDisbursementService) authResult(args mock.Arguments) (*loan.Authorization, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Authorization), args.Error(1)
}

func (m *mockDisbursementService) disbursementResult(args mock.Arguments) (*loan.Disbursement, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Disbursement), args.Error(1)
}

func (m *mockDisbursementService) Activate(ctx context.Context, id uuid.UUID) (*loan.Authorization, error) {
	return m.authResult(m.Called(ctx, id))
}

func (m *mockDisbursementService) VerifyMilestone(ctx context.Context, id uuid.UUID, n int, ev loan.Evidence) (*loan.Authorization, error) {
	return m.authResult(m.Called(ctx, id, n, ev))
}

func (m *mockDisbursementService) EnterMoratorium(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Loan), args.Error(1)
}

func (m *mockDisbursementService) StartRepayment(ctx context.Context, id uuid.UUID) (*loan.Loan, []*loan.Repayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*loan.Loan), args.Get(1).([]*loan.Repayment), args.Error(2)
}

func (m *mockDisbursementService) HandleSettlementCallback(ctx context.Context, cb disbursement.SettlementCallback) (*loan.Disbursement, error) {
	return m.disbursementResult(m.Called(ctx, cb))
}

func (m *mockDisbursementService) RetrySettlement(ctx context.Context, id uuid.UUID) (*loan.Disbursement, error) {
	return m.disbursementResult(m.Called(ctx, id))
}

func (m *mockDisbursementService) GetDisbursement(ctx context.Context, id uuid.UUID) (*loan.Disbursement, error) {
	return m.disbursementResult(m.Called(ctx, id))
}

func (m *mockDisbursementService) ListDisbursements(ctx context.Context, id uuid.UUID) ([]*loan.Disbursement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*loan.Disbursement), args.Error(1)
}

// --- Mock Repayment Service ---

type mockRepaymentService struct {
	mock.Mock
}

func (m *mockRepaymentService) RecordPayment(ctx context.Context, req repayment.RecordPaymentRequest) (*loan.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.PaymentResult), args.Error(1)
}

func (m *mockRepaymentService) ListSchedule(ctx context.Context, id uuid.UUID) ([]*loan.Repayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*loan.Repayment), args.Error(1)
}

func (m *mockRepaymentService) GetRepayment(ctx context.Context, id uuid.UUID) (*loan.Repayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Repayment), args.Error(1)
}

// --- Helpers ---

type registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

func newTestRouter(hs ...registrar) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1")
	for _, h := range hs {
		h.RegisterRoutes(api)
	}
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

//Personal.AI order the ending
