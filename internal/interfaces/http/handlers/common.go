// Package handlers binds the loan API routes to the application services.
package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/internal/interfaces/http/middleware"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ListResponse wraps one page of results.
type ListResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// parsePagination extracts page and page_size from query parameters.
func parsePagination(c *gin.Context) (int, int) {
	page := 1
	pageSize := defaultPageSize

	if v := c.Query("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := c.Query("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= maxPageSize {
			pageSize = ps
		}
	}
	return page, pageSize
}

// uuidParam parses a path parameter as a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.InvalidParam(name + " must be a UUID").WithDetail(c.Param(name))
	}
	return id, nil
}

// bindJSON decodes the request body into v.
func bindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return errors.InvalidParam("invalid request body").WithDetail(err.Error())
	}
	return nil
}

// respondError maps an error onto the API error body. Client errors carry
// their message; server errors are masked and logged.
func respondError(c *gin.Context, log logging.Logger, err error) {
	resp := ErrorResponse{
		Code:      string(errors.ErrCodeInternal),
		Message:   "internal server error",
		RequestID: middleware.GetRequestID(c),
	}
	status := http.StatusInternalServerError

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		status = errors.HTTPStatusForCode(appErr.Code)
		resp.Code = string(appErr.Code)
		if status < http.StatusInternalServerError {
			resp.Message = appErr.Message
			resp.Detail = appErr.Detail
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error("Request failed",
			logging.Err(err),
			logging.String("route", c.FullPath()),
			logging.String("request_id", resp.RequestID))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

//Personal.AI order the ending
