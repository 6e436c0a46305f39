// Package api exposes the admin HTTP surface: subscriptions, portfolio views,
// diagnostics, metrics and the change stream.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, apiResponse{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// statusFor maps an error's kind onto an HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUpstream:
		return http.StatusBadGateway
	case errs.KindDataQuality:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
