package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/application/cases"
	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

type CaseHandler struct {
	svc cases.Service
}

func NewCaseHandler(svc cases.Service) *CaseHandler {
	return &CaseHandler{svc: svc}
}

// CreateCaseBody is the wire form of a new case; dates are YYYY-MM-DD.
type CreateCaseBody struct {
	PropertyID     string  `json:"property_id"`
	MoveOutDate    string  `json:"move_out_date"`
	LeaseStartDate *string `json:"lease_start_date,omitempty"`
	LeaseEndDate   *string `json:"lease_end_date,omitempty"`
	DepositAmount  float64 `json:"deposit_amount"`
	TenantName     string  `json:"tenant_name"`
	TenantEmail    string  `json:"tenant_email,omitempty"`
}

func (b *CreateCaseBody) toRequest() (*cases.CreateCaseRequest, error) {
	moveOut, err := parseDate("move_out_date", b.MoveOutDate)
	if err != nil {
		return nil, err
	}
	start, err := parseOptionalDate("lease_start_date", b.LeaseStartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("lease_end_date", b.LeaseEndDate)
	if err != nil {
		return nil, err
	}
	return &cases.CreateCaseRequest{
		PropertyID:     b.PropertyID,
		MoveOutDate:    moveOut,
		LeaseStartDate: start,
		LeaseEndDate:   end,
		DepositAmount:  b.DepositAmount,
		TenantName:     b.TenantName,
		TenantEmail:    b.TenantEmail,
	}, nil
}

// Create handles POST /api/v1/cases.
func (h *CaseHandler) Create(c *gin.Context) {
	var body CreateCaseBody
	if !bindJSON(c, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	detail, err := h.svc.CreateCase(c.Request.Context(), currentUser(c), req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// List handles GET /api/v1/cases?status=&limit=&offset=.
func (h *CaseHandler) List(c *gin.Context) {
	limit, offset := parsePagination(c, 20)
	opts := []disposition.CaseQueryOption{disposition.WithLimit(limit), disposition.WithOffset(offset)}
	if s := c.Query("status"); s != "" {
		status, err := disposition.ParseStatus(s)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		opts = append(opts, disposition.WithStatus(status))
	}
	list, err := h.svc.ListCases(c.Request.Context(), currentUser(c), opts...)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get handles GET /api/v1/cases/:id.
func (h *CaseHandler) Get(c *gin.Context) {
	detail, err := h.svc.GetCase(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Update handles PATCH /api/v1/cases/:id.
func (h *CaseHandler) Update(c *gin.Context) {
	var req cases.UpdateCaseRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.svc.UpdateCaseDetails(c.Request.Context(), currentUser(c), c.Param("id"), &req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// AddDeduction handles POST /api/v1/cases/:id/deductions.
func (h *CaseHandler) AddDeduction(c *gin.Context) {
	var req cases.AddDeductionRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.svc.AddDeduction(c.Request.Context(), currentUser(c), c.Param("id"), &req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// RemoveDeduction handles DELETE /api/v1/cases/:id/deductions/:deductionId.
func (h *CaseHandler) RemoveDeduction(c *gin.Context) {
	if err := h.svc.RemoveDeduction(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("deductionId")); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type ChecklistItemBody struct {
	Completed *bool `json:"completed"`
}

// SetChecklistItem handles PUT /api/v1/cases/:id/checklist/:itemId.
func (h *CaseHandler) SetChecklistItem(c *gin.Context) {
	var body ChecklistItemBody
	if !bindJSON(c, &body) {
		return
	}
	if body.Completed == nil {
		middleware.RespondError(c, errors.InvalidParam("completed is required"))
		return
	}
	item, err := h.svc.SetChecklistItem(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("itemId"), *body.Completed)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// TransitionBody is the wire form of a status change.
type TransitionBody struct {
	To              string   `json:"to"`
	DeliveryMethod  string   `json:"delivery_method,omitempty"`
	SentAt          *string  `json:"sent_at,omitempty"`
	TrackingNumber  string   `json:"tracking_number,omitempty"`
	DeliveryAddress string   `json:"delivery_address,omitempty"`
	ProofIDs        []string `json:"proof_ids,omitempty"`
	ClosureReason   string   `json:"closure_reason,omitempty"`
}

func (b *TransitionBody) toRequest() (disposition.TransitionRequest, error) {
	to, err := disposition.ParseStatus(b.To)
	if err != nil {
		return disposition.TransitionRequest{}, err
	}
	method := disposition.DeliveryMethod(strings.ToUpper(strings.TrimSpace(b.DeliveryMethod)))
	if method != "" && !method.IsValid() {
		return disposition.TransitionRequest{}, errors.InvalidParam("unknown delivery method").WithDetail(b.DeliveryMethod)
	}
	sentAt, err := parseOptionalDate("sent_at", b.SentAt)
	if err != nil {
		return disposition.TransitionRequest{}, err
	}
	return disposition.TransitionRequest{
		To:              to,
		DeliveryMethod:  method,
		SentAt:          sentAt,
		TrackingNumber:  b.TrackingNumber,
		DeliveryAddress: b.DeliveryAddress,
		ProofIDs:        b.ProofIDs,
		ClosureReason:   b.ClosureReason,
	}, nil
}

// Transition handles POST /api/v1/cases/:id/transitions.
func (h *CaseHandler) Transition(c *gin.Context) {
	var body TransitionBody
	if !bindJSON(c, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	detail, err := h.svc.TransitionStatus(c.Request.Context(), currentUser(c), c.Param("id"), req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Readiness handles GET /api/v1/cases/:id/readiness.
func (h *CaseHandler) Readiness(c *gin.Context) {
	report, err := h.svc.CheckReadiness(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Exposure handles GET /api/v1/cases/:id/exposure.
func (h *CaseHandler) Exposure(c *gin.Context) {
	est, err := h.svc.EstimateExposure(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// Audit handles GET /api/v1/cases/:id/audit?limit=&offset=.
func (h *CaseHandler) Audit(c *gin.Context) {
	limit, offset := parsePagination(c, 50)
	page, err := h.svc.ListAuditEvents(c.Request.Context(), currentUser(c), c.Param("id"), limit, offset)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
