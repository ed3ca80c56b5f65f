package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/application/cases"
	"github.com/landlordcomply/landlordcomply/internal/application/notification"
	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// DocumentService is the document half of the case service.
type DocumentService interface {
	GenerateDocument(ctx context.Context, userID, caseID string, docType disposition.DocumentType) (*disposition.Document, error)
	ExportProofPacket(ctx context.Context, userID, caseID string) (*cases.DocumentLink, error)
	GetDocumentURL(ctx context.Context, userID, caseID, documentID string) (*cases.DocumentLink, error)
}

// DocumentEmailer queues a document for email delivery.
type DocumentEmailer interface {
	RequestDocumentEmail(ctx context.Context, userID, caseID, documentID, email string) (*notification.EmailReceipt, error)
}

type DocumentHandler struct {
	docs   DocumentService
	mailer DocumentEmailer
}

func NewDocumentHandler(docs DocumentService, mailer DocumentEmailer) *DocumentHandler {
	return &DocumentHandler{docs: docs, mailer: mailer}
}

type GenerateDocumentBody struct {
	Type string `json:"type"`
}

// Generate handles POST /api/v1/cases/:id/documents.
func (h *DocumentHandler) Generate(c *gin.Context) {
	var body GenerateDocumentBody
	if !bindJSON(c, &body) {
		return
	}
	docType := disposition.DocumentType(strings.ToUpper(strings.TrimSpace(body.Type)))
	doc, err := h.docs.GenerateDocument(c.Request.Context(), currentUser(c), c.Param("id"), docType)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// ProofPacket handles POST /api/v1/cases/:id/proof-packet.
func (h *DocumentHandler) ProofPacket(c *gin.Context) {
	link, err := h.docs.ExportProofPacket(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// URL handles GET /api/v1/cases/:id/documents/:docId/url.
func (h *DocumentHandler) URL(c *gin.Context) {
	link, err := h.docs.GetDocumentURL(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("docId"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// Email handles POST /api/v1/cases/:id/documents/:docId/email. The email
// is queued, so success is 202.
func (h *DocumentHandler) Email(c *gin.Context) {
	if h.mailer == nil {
		middleware.RespondError(c, errors.New(errors.ErrCodeServiceUnavailable, "email delivery is not configured"))
		return
	}
	var body notification.EmailRequest
	if !bindJSON(c, &body) {
		return
	}
	receipt, err := h.mailer.RequestDocumentEmail(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("docId"), body.Email)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, receipt)
}
