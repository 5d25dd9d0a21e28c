package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	casedomain "github.com/jkvis/donateflow/internal/casereport/domain"
	"github.com/jkvis/donateflow/internal/currency"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	paymentdomain "github.com/jkvis/donateflow/internal/payment/domain"
	"github.com/jkvis/donateflow/internal/providers/artifact"
	"github.com/jkvis/donateflow/internal/providers/email"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, donationdomain.ErrInvalidAmount),
		errors.Is(err, donationdomain.ErrInvalidChannel),
		errors.Is(err, donationdomain.ErrInvalidTransaction),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, receiptdomain.ErrInvalidTaxYear),
		errors.Is(err, currency.ErrUnsupportedCurrencyPair):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, donordomain.ErrDonorNotFound),
		errors.Is(err, donationdomain.ErrDonationNotFound),
		errors.Is(err, casedomain.ErrCaseNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, receiptdomain.ErrReceiptNotFound),
		errors.Is(err, artifact.ErrArtifactNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, receiptdomain.ErrReceiptExists),
		errors.Is(err, casedomain.ErrCaseNotEligible):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, receiptdomain.ErrNoDonations):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	case errors.Is(err, email.ErrChannelUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "delivery channel unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
