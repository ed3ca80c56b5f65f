package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// ErrorBody is the error half of every failed response.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Detail  string         `json:"detail,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// ErrorResponse is the JSON envelope of a failed response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// RespondError writes err as an error envelope and aborts the chain.
// Server-side failures are logged and their message is masked.
func RespondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	body := ErrorBody{Code: string(code), Message: err.Error()}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Detail = appErr.Detail
		body.Fields = appErr.Fields
	}
	if status >= http.StatusInternalServerError {
		if code == errors.CodeUnknown {
			body.Code = string(errors.ErrCodeInternal)
		}
		body.Message = errors.DefaultMessageForCode(errors.ErrorCode(body.Code))
		body.Detail = ""
		body.Fields = nil
		logging.FromContext(c.Request.Context(), nil).Error("Request failed",
			logging.String("path", c.FullPath()), logging.Err(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}
