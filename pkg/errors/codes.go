package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_015"
	ErrCodeUnknown            ErrorCode = "COMMON_999"
)

// Short aliases used at call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeValidation   = ErrCodeValidation
	CodeUnknown      = ErrCodeUnknown
	CodeOK           = ErrorCode("OK")
)

// Loan Module Error Codes
const (
	ErrCodeLoanNotFound          ErrorCode = "LOAN_001"
	ErrCodeLoanAmountOutOfRange  ErrorCode = "LOAN_002"
	ErrCodeLoanInvalidTransition ErrorCode = "LOAN_003"
	ErrCodeMilestoneOutOfOrder   ErrorCode = "LOAN_004"
	ErrCodeMilestoneUnknown      ErrorCode = "LOAN_005"
	ErrCodeEvidenceBelowTarget   ErrorCode = "LOAN_006"
	ErrCodeMilestoneDisbursed    ErrorCode = "LOAN_007"
	ErrCodeLoanVersionConflict   ErrorCode = "LOAN_008"
	ErrCodeLoanInvalidTerms      ErrorCode = "LOAN_009"
	ErrCodePolicyInvalid         ErrorCode = "LOAN_010"
)

// Scoring Module Error Codes
const (
	ErrCodeSubjectNotFound ErrorCode = "SCORE_001"
	ErrCodeScoringFailed   ErrorCode = "SCORE_002"
)

// Disbursement Module Error Codes
const (
	ErrCodeDisbursementNotFound  ErrorCode = "DISB_001"
	ErrCodeSettlementFailed      ErrorCode = "DISB_002"
	ErrCodeSettlementRetryLimit  ErrorCode = "DISB_003"
	ErrCodeDisbursementNotFailed ErrorCode = "DISB_004"
)

// Repayment Module Error Codes
const (
	ErrCodeRepaymentNotFound  ErrorCode = "REPAY_001"
	ErrCodeRepaymentSettled   ErrorCode = "REPAY_002"
	ErrCodeRepaymentAmount    ErrorCode = "REPAY_003"
	ErrCodeRepaymentNotActive ErrorCode = "REPAY_004"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,

	ErrCodeLoanNotFound:          http.StatusNotFound,
	ErrCodeLoanAmountOutOfRange:  http.StatusBadRequest,
	ErrCodeLoanInvalidTransition: http.StatusConflict,
	ErrCodeMilestoneOutOfOrder:   http.StatusConflict,
	ErrCodeMilestoneUnknown:      http.StatusBadRequest,
	ErrCodeEvidenceBelowTarget:   http.StatusUnprocessableEntity,
	ErrCodeMilestoneDisbursed:    http.StatusConflict,
	ErrCodeLoanVersionConflict:   http.StatusConflict,
	ErrCodeLoanInvalidTerms:      http.StatusBadRequest,
	ErrCodePolicyInvalid:         http.StatusInternalServerError,

	ErrCodeSubjectNotFound: http.StatusNotFound,
	ErrCodeScoringFailed:   http.StatusInternalServerError,

	ErrCodeDisbursementNotFound:  http.StatusNotFound,
	ErrCodeSettlementFailed:      http.StatusBadGateway,
	ErrCodeSettlementRetryLimit:  http.StatusConflict,
	ErrCodeDisbursementNotFailed: http.StatusConflict,

	ErrCodeRepaymentNotFound:  http.StatusNotFound,
	ErrCodeRepaymentSettled:   http.StatusConflict,
	ErrCodeRepaymentAmount:    http.StatusBadRequest,
	ErrCodeRepaymentNotActive: http.StatusConflict,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeMessageQueueError:  "message queue error",

	ErrCodeLoanNotFound:          "loan not found",
	ErrCodeLoanAmountOutOfRange:  "requested amount outside permitted range",
	ErrCodeLoanInvalidTransition: "operation not permitted in current loan status",
	ErrCodeMilestoneOutOfOrder:   "milestone verified out of order",
	ErrCodeMilestoneUnknown:      "unknown milestone",
	ErrCodeEvidenceBelowTarget:   "course progress below milestone target",
	ErrCodeMilestoneDisbursed:    "milestone already verified",
	ErrCodeLoanVersionConflict:   "loan was modified concurrently",
	ErrCodeLoanInvalidTerms:      "invalid loan terms",
	ErrCodePolicyInvalid:         "invalid lending policy",

	ErrCodeSubjectNotFound: "scoring subject not found",
	ErrCodeScoringFailed:   "scoring failed",

	ErrCodeDisbursementNotFound:  "disbursement not found",
	ErrCodeSettlementFailed:      "settlement failed",
	ErrCodeSettlementRetryLimit:  "settlement retry limit reached",
	ErrCodeDisbursementNotFailed: "disbursement is not in failed status",

	ErrCodeRepaymentNotFound:  "repayment not found",
	ErrCodeRepaymentSettled:   "repayment already settled",
	ErrCodeRepaymentAmount:    "invalid payment amount",
	ErrCodeRepaymentNotActive: "loan is not in repayment",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
