package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// JurisdictionService is the read side of the rules service.
type JurisdictionService interface {
	RuleResolver
	ListJurisdictions(ctx context.Context, opts ...jurisdiction.QueryOption) ([]*jurisdiction.Jurisdiction, int64, error)
}

type JurisdictionHandler struct {
	svc JurisdictionService
}

func NewJurisdictionHandler(svc JurisdictionService) *JurisdictionHandler {
	return &JurisdictionHandler{svc: svc}
}

type JurisdictionList struct {
	Jurisdictions []*jurisdiction.Jurisdiction `json:"jurisdictions"`
	Total         int64                        `json:"total"`
	Limit         int                          `json:"limit"`
	Offset        int                          `json:"offset"`
}

// List handles GET /api/v1/jurisdictions?state=&active=&limit=&offset=.
func (h *JurisdictionHandler) List(c *gin.Context) {
	limit, offset := parsePagination(c, 50)
	opts := []jurisdiction.QueryOption{jurisdiction.WithLimit(limit), jurisdiction.WithOffset(offset)}
	if state := c.Query("state"); state != "" {
		code, err := jurisdiction.NormalizeState(state)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		opts = append(opts, jurisdiction.WithState(code))
	}
	if active, err := strconv.ParseBool(c.DefaultQuery("active", "false")); err == nil && active {
		opts = append(opts, jurisdiction.WithActiveOnly())
	}

	items, total, err := h.svc.ListJurisdictions(c.Request.Context(), opts...)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	applied := jurisdiction.ApplyOptions(opts...)
	if items == nil {
		items = []*jurisdiction.Jurisdiction{}
	}
	c.JSON(http.StatusOK, JurisdictionList{
		Jurisdictions: items,
		Total:         total,
		Limit:         applied.Limit,
		Offset:        applied.Offset,
	})
}

// Resolve handles GET /api/v1/jurisdictions/resolve?state=&city=.
func (h *JurisdictionHandler) Resolve(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		middleware.RespondError(c, errors.InvalidParam("state is required"))
		return
	}
	res, err := h.svc.Resolve(c.Request.Context(), state, c.Query("city"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
