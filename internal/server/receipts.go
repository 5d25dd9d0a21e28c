package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jkvis/donateflow/internal/providers/artifact"
)

// HandleDownloadReceipt streams the rendered PDF; the document is never
// embedded in a JSON body.
func (s *Server) HandleDownloadReceipt(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	receipt, err := s.receiptSvc.FindByNumber(c.Request.Context(), number)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !receipt.HasArtifact() {
		// Issued but never rendered; the artifact may be attached by a
		// later retry.
		AbortWithError(c, artifact.ErrArtifactNotFound)
		return
	}

	doc, err := s.artifacts.Open(c.Request.Context(), *receipt.ArtifactPath)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer doc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.ReceiptArtifactName(receipt.ReceiptNumber)))
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, doc); err != nil {
		// Headers are already out; record the error for the access log.
		_ = c.Error(err)
	}
}
