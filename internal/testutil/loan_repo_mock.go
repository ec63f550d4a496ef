package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// MemoryLoanRepo is an in-memory loan.Repository. Reads return copies, so
// callers mutate their own values, and WithTx restores a snapshot when the
// callback fails. Transactions are serialized.
type MemoryLoanRepo struct {
	txMu sync.Mutex

	mu            sync.Mutex
	loans         map[uuid.UUID]*loan.Loan
	disbursements map[uuid.UUID]*loan.Disbursement
	repayments    map[uuid.UUID]*loan.Repayment
	seq           int64
	failures      map[string]error
	calls         map[string]int
}

var _ loan.Repository = (*MemoryLoanRepo)(nil)

// NewMemoryLoanRepo returns an empty repository.
func NewMemoryLoanRepo() *MemoryLoanRepo {
	return &MemoryLoanRepo{
		loans:         make(map[uuid.UUID]*loan.Loan),
		disbursements: make(map[uuid.UUID]*loan.Disbursement),
		repayments:    make(map[uuid.UUID]*loan.Repayment),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
	}
}

// FailOn makes every later call to method return err. A nil err clears it.
func (r *MemoryLoanRepo) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, method)
		return
	}
	r.failures[method] = err
}

// Calls returns how many times method was invoked.
func (r *MemoryLoanRepo) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// enter records the call and returns the injected failure, if any. The
// caller must hold r.mu.
func (r *MemoryLoanRepo) enter(method string) error {
	r.calls[method]++
	return r.failures[method]
}

// Put stores l as-is, bypassing version checks. Intended for fixtures.
func (r *MemoryLoanRepo) Put(l *loan.Loan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loans[l.ID] = l.Clone()
}

// ─────────────────────────────────────────────────────────────────────────────
// Loan
// ─────────────────────────────────────────────────────────────────────────────

func (r *MemoryLoanRepo) Create(_ context.Context, l *loan.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Create"); err != nil {
		return err
	}
	if _, ok := r.loans[l.ID]; ok {
		return errors.Conflict("loan already exists")
	}
	for _, existing := range r.loans {
		if l.ApplicationNumber != "" && existing.ApplicationNumber == l.ApplicationNumber {
			return errors.Conflict("application number already exists")
		}
	}
	r.loans[l.ID] = l.Clone()
	return nil
}

func (r *MemoryLoanRepo) GetByID(_ context.Context, id uuid.UUID) (*loan.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetByID"); err != nil {
		return nil, err
	}
	l, ok := r.loans[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeLoanNotFound, "loan not found").WithDetail("id=" + id.String())
	}
	return l.Clone(), nil
}

func (r *MemoryLoanRepo) GetByApplicationNumber(_ context.Context, number string) (*loan.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetByApplicationNumber"); err != nil {
		return nil, err
	}
	for _, l := range r.loans {
		if l.ApplicationNumber == number {
			return l.Clone(), nil
		}
	}
	return nil, errors.New(errors.ErrCodeLoanNotFound, "loan not found").WithDetail("application_number=" + number)
}

func (r *MemoryLoanRepo) Update(_ context.Context, l *loan.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Update"); err != nil {
		return err
	}
	stored, ok := r.loans[l.ID]
	if !ok {
		return errors.New(errors.ErrCodeLoanNotFound, "loan not found").WithDetail("id=" + l.ID.String())
	}
	if stored.Version != l.Version {
		return errors.Newf(errors.ErrCodeLoanVersionConflict, "loan version %d is stale, current is %d", l.Version, stored.Version)
	}
	l.Version++
	r.loans[l.ID] = l.Clone()
	return nil
}

func (r *MemoryLoanRepo) List(_ context.Context, f loan.ListFilter) ([]*loan.Loan, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("List"); err != nil {
		return nil, 0, err
	}
	var out []*loan.Loan
	for _, l := range r.loans {
		if !matches(l, f) {
			continue
		}
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	total := int64(len(out))
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*loan.Loan{}, total, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func matches(l *loan.Loan, f loan.ListFilter) bool {
	if f.LearnerID != "" && l.LearnerID != f.LearnerID {
		return false
	}
	if f.ProviderID != "" && l.ProviderID != f.ProviderID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if l.Status == s {
			return true
		}
	}
	return false
}

func (r *MemoryLoanRepo) NextApplicationSequence(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("NextApplicationSequence"); err != nil {
		return 0, err
	}
	r.seq++
	return r.seq, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Disbursement
// ─────────────────────────────────────────────────────────────────────────────

func (r *MemoryLoanRepo) CreateDisbursement(_ context.Context, d *loan.Disbursement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("CreateDisbursement"); err != nil {
		return err
	}
	r.disbursements[d.ID] = d.Clone()
	return nil
}

func (r *MemoryLoanRepo) GetDisbursement(_ context.Context, id uuid.UUID) (*loan.Disbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetDisbursement"); err != nil {
		return nil, err
	}
	d, ok := r.disbursements[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeDisbursementNotFound, "disbursement not found").WithDetail("id=" + id.String())
	}
	return d.Clone(), nil
}

func (r *MemoryLoanRepo) UpdateDisbursement(_ context.Context, d *loan.Disbursement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("UpdateDisbursement"); err != nil {
		return err
	}
	if _, ok := r.disbursements[d.ID]; !ok {
		return errors.New(errors.ErrCodeDisbursementNotFound, "disbursement not found")
	}
	r.disbursements[d.ID] = d.Clone()
	return nil
}

func (r *MemoryLoanRepo) ListDisbursements(_ context.Context, loanID uuid.UUID) ([]*loan.Disbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ListDisbursements"); err != nil {
		return nil, err
	}
	var out []*loan.Disbursement
	for _, d := range r.disbursements {
		if d.LoanID == loanID {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MilestoneNumber < out[j].MilestoneNumber })
	return out, nil
}

func (r *MemoryLoanRepo) ListUnsettledDisbursements(_ context.Context) ([]*loan.Disbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ListUnsettledDisbursements"); err != nil {
		return nil, err
	}
	var out []*loan.Disbursement
	for _, d := range r.disbursements {
		if d.Status == loan.DisbursementMilestoneVerified || d.Status == loan.DisbursementBankInitiated {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Repayment
// ─────────────────────────────────────────────────────────────────────────────

func (r *MemoryLoanRepo) CreateRepayments(_ context.Context, rs []*loan.Repayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("CreateRepayments"); err != nil {
		return err
	}
	for _, rp := range rs {
		r.repayments[rp.ID] = rp.Clone()
	}
	return nil
}

func (r *MemoryLoanRepo) GetRepayment(_ context.Context, id uuid.UUID) (*loan.Repayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetRepayment"); err != nil {
		return nil, err
	}
	rp, ok := r.repayments[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeRepaymentNotFound, "repayment not found").WithDetail("id=" + id.String())
	}
	return rp.Clone(), nil
}

func (r *MemoryLoanRepo) UpdateRepayment(_ context.Context, rp *loan.Repayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("UpdateRepayment"); err != nil {
		return err
	}
	if _, ok := r.repayments[rp.ID]; !ok {
		return errors.New(errors.ErrCodeRepaymentNotFound, "repayment not found")
	}
	r.repayments[rp.ID] = rp.Clone()
	return nil
}

func (r *MemoryLoanRepo) ListRepayments(_ context.Context, loanID uuid.UUID) ([]*loan.Repayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ListRepayments"); err != nil {
		return nil, err
	}
	var out []*loan.Repayment
	for _, rp := range r.repayments {
		if rp.LoanID == loanID {
			out = append(out, rp.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EMINumber < out[j].EMINumber })
	return out, nil
}

func (r *MemoryLoanRepo) ListLoansWithOverdue(_ context.Context, asOf time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ListLoansWithOverdue"); err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, rp := range r.repayments {
		if rp.Status.IsOpen() && asOf.After(rp.GraceEndDate) && !seen[rp.LoanID] {
			seen[rp.LoanID] = true
			out = append(out, rp.LoanID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transactions
// ─────────────────────────────────────────────────────────────────────────────

func (r *MemoryLoanRepo) WithTx(ctx context.Context, fn func(tx loan.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	if err := r.enter("WithTx"); err != nil {
		r.mu.Unlock()
		return err
	}
	snapshot := r.snapshot()
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.loans, r.disbursements, r.repayments = snapshot.loans, snapshot.disbursements, snapshot.repayments
		r.mu.Unlock()
		return err
	}
	return nil
}

type repoState struct {
	loans         map[uuid.UUID]*loan.Loan
	disbursements map[uuid.UUID]*loan.Disbursement
	repayments    map[uuid.UUID]*loan.Repayment
}

func (r *MemoryLoanRepo) snapshot() repoState {
	s := repoState{
		loans:         make(map[uuid.UUID]*loan.Loan, len(r.loans)),
		disbursements: make(map[uuid.UUID]*loan.Disbursement, len(r.disbursements)),
		repayments:    make(map[uuid.UUID]*loan.Repayment, len(r.repayments)),
	}
	for k, v := range r.loans {
		s.loans[k] = v.Clone()
	}
	for k, v := range r.disbursements {
		s.disbursements[k] = v.Clone()
	}
	for k, v := range r.repayments {
		s.repayments[k] = v.Clone()
	}
	return s
}

//Personal.AI order the ending
