package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"
	"go.uber.org/zap"
)

type runReconciliationRequest struct {
	Year int `json:"year"`
}

// HandleRunReconciliation fires a batch run in the background and
// answers immediately. The run id only correlates log lines; the job's
// summary is its log output and metrics.
func (s *Server) HandleRunReconciliation(c *gin.Context) {
	var req runReconciliationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	runID := s.genID.Generate()
	log := s.log.With(zap.String("run_id", runID.String()), zap.Int("year", req.Year))

	go func() {
		summary, err := s.job.Run(context.Background(), req.Year)
		if err != nil {
			log.Error("reconciliation run failed", zap.Error(err))
			return
		}
		log.Info("reconciliation run finished",
			zap.Int("success", summary.SuccessCount),
			zap.Int("skipped", summary.SkipCount),
			zap.Int("generation_failures", summary.GenerationFailures),
			zap.Int("delivery_failures", summary.DeliveryFailures),
		)
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID.String()})
}

type generateReceiptRequest struct {
	Year int `json:"year" binding:"required"`
}

// HandleGenerateDonorReceipt is the synchronous supervised variant; any
// pipeline failure is propagated to the caller.
func (s *Server) HandleGenerateDonorReceipt(c *gin.Context) {
	donorID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req generateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	receipt, err := s.job.GenerateForDonor(c.Request.Context(), donorID, req.Year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receiptResponse(receipt))
}

func receiptResponse(r *receiptdomain.Receipt) gin.H {
	return gin.H{
		"id":             r.ID.String(),
		"donor_id":       r.DonorID.String(),
		"year":           r.Year,
		"receipt_number": r.ReceiptNumber,
		"total_amount":   r.TotalAmount.StringFixed(2),
		"currency":       r.Currency,
		"issued_at":      r.IssuedAt,
		"has_artifact":   r.HasArtifact(),
	}
}
