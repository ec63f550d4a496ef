package prometheus

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// LendingMetrics holds the engine's metric vectors. All methods are safe to
// call on a nil receiver, which records nothing.
type LendingMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Origination
	ApplicationsTotal CounterVec
	ScoreDistribution HistogramVec

	// Disbursement
	DisbursementsTotal       CounterVec
	DisbursedAmountTotal     CounterVec
	SettlementDuration       HistogramVec
	StatusTransitionsTotal   CounterVec
	SettlementTasksInFlight  GaugeVec

	// Repayment and collections
	RepaymentsTotal      CounterVec
	RepaidAmountTotal    CounterVec
	DelinquentLoans      GaugeVec
	SweepDuration        HistogramVec
	EventsPublishedTotal CounterVec
}

var (
	DefaultHTTPDurationBuckets       = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultSettlementDurationBuckets = []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120}
	ScoreBuckets                     = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
)

// NewLendingMetrics registers every lending metric on collector.
func NewLendingMetrics(collector MetricsCollector) *LendingMetrics {
	return &LendingMetrics{
		HTTPRequestsTotal: collector.RegisterCounter("http_requests_total",
			"HTTP requests by method, route and status.", "method", "route", "status"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds",
			"HTTP request latency.", DefaultHTTPDurationBuckets, "method", "route"),

		ApplicationsTotal: collector.RegisterCounter("loan_applications_total",
			"Loan applications by decision.", "decision"),
		ScoreDistribution: collector.RegisterHistogram("score_distribution",
			"Computed scores by subject (borrower, provider).", ScoreBuckets, "subject"),

		DisbursementsTotal: collector.RegisterCounter("disbursements_total",
			"Disbursements by status.", "status"),
		DisbursedAmountTotal: collector.RegisterCounter("disbursed_amount_total",
			"Total amount authorized for disbursement.", "milestone"),
		SettlementDuration: collector.RegisterHistogram("settlement_duration_seconds",
			"Time from scheduling to terminal settlement status.", DefaultSettlementDurationBuckets, "outcome"),
		StatusTransitionsTotal: collector.RegisterCounter("loan_status_transitions_total",
			"Loan status transitions.", "from", "to"),
		SettlementTasksInFlight: collector.RegisterGauge("settlement_tasks_in_flight",
			"Background settlement tasks currently scheduled.", "kind"),

		RepaymentsTotal: collector.RegisterCounter("repayments_total",
			"Recorded payments by resulting installment status.", "status"),
		RepaidAmountTotal: collector.RegisterCounter("repaid_amount_total",
			"Total amount received against installments.", "method"),
		DelinquentLoans: collector.RegisterGauge("delinquent_loans",
			"Loans flagged by the last delinquency sweep.", "status"),
		SweepDuration: collector.RegisterHistogram("collections_sweep_duration_seconds",
			"Delinquency sweep latency.", nil, "result"),
		EventsPublishedTotal: collector.RegisterCounter("events_published_total",
			"Lifecycle events published by type and result.", "event_type", "result"),
	}
}

func (m *LendingMetrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *LendingMetrics) ObserveApplication(decision string) {
	if m == nil {
		return
	}
	m.ApplicationsTotal.WithLabelValues(decision).Inc()
}

func (m *LendingMetrics) ObserveScore(subject string, score float64) {
	if m == nil {
		return
	}
	m.ScoreDistribution.WithLabelValues(subject).Observe(score)
}

func (m *LendingMetrics) ObserveDisbursement(status string, milestone int, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.DisbursementsTotal.WithLabelValues(status).Inc()
	if amount.IsPositive() {
		m.DisbursedAmountTotal.WithLabelValues(strconv.Itoa(milestone)).Add(amount.InexactFloat64())
	}
}

func (m *LendingMetrics) ObserveSettlement(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.DisbursementsTotal.WithLabelValues(outcome).Inc()
	m.SettlementDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *LendingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *LendingMetrics) SetTasksInFlight(kind string, n int) {
	if m == nil {
		return
	}
	m.SettlementTasksInFlight.WithLabelValues(kind).Set(float64(n))
}

func (m *LendingMetrics) ObserveRepayment(status, method string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.RepaymentsTotal.WithLabelValues(status).Inc()
	m.RepaidAmountTotal.WithLabelValues(method).Add(amount.InexactFloat64())
}

func (m *LendingMetrics) SetDelinquent(status string, n int) {
	if m == nil {
		return
	}
	m.DelinquentLoans.WithLabelValues(status).Set(float64(n))
}

func (m *LendingMetrics) ObserveSweep(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SweepDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *LendingMetrics) ObserveEvent(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublishedTotal.WithLabelValues(eventType, result).Inc()
}

//Personal.AI order the ending
