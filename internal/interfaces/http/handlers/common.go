package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const dateLayout = "2006-01-02"

// bindJSON decodes the request body into dst and reports a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.RespondError(c, errors.InvalidParam("malformed request body").WithDetail(err.Error()))
		return false
	}
	return true
}

// currentUser returns the authenticated user id. Routes behind the auth
// middleware always have one.
func currentUser(c *gin.Context) string {
	return middleware.UserID(c)
}

// parsePagination reads limit and offset. Bad values fall back to the
// defaults; the services clamp the upper bound.
func parsePagination(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Calendar
// dates are midnight UTC.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.InvalidParam(field + " is required")
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.InvalidParam(field + " must be YYYY-MM-DD or RFC 3339").WithDetail(s)
	}
	return t, nil
}

func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
