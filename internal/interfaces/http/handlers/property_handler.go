package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/application/cases"
	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
)

// PropertyService is the property half of the case service.
type PropertyService interface {
	CreateProperty(ctx context.Context, userID string, req *cases.CreatePropertyRequest) (*disposition.Property, error)
	ListProperties(ctx context.Context, userID string) ([]*disposition.Property, error)
}

type PropertyHandler struct {
	svc PropertyService
}

func NewPropertyHandler(svc PropertyService) *PropertyHandler {
	return &PropertyHandler{svc: svc}
}

// Create handles POST /api/v1/properties.
func (h *PropertyHandler) Create(c *gin.Context) {
	var req cases.CreatePropertyRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.CreateProperty(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// List handles GET /api/v1/properties.
func (h *PropertyHandler) List(c *gin.Context) {
	props, err := h.svc.ListProperties(c.Request.Context(), currentUser(c))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if props == nil {
		props = []*disposition.Property{}
	}
	c.JSON(http.StatusOK, gin.H{"properties": props})
}
