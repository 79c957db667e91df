package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
)

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUnauthorized       = 40100
	CodeInternalServer     = 50000
	CodeUsernameExists     = 40001
	CodeEmailExists        = 40002
	CodeInvalidCredentials = 40101
	CodeDocumentNotFound   = 40402
	CodeQuotaExceeded      = 42900
	CodeRateLimited        = 42901
	CodeUpstream           = 50200
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// FromError maps the service error taxonomy onto a response, the most
// specific kind first. fallback is
// shown for upstream and unexpected failures instead of the raw cause.
func FromError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrUsernameExists):
		Error(c, http.StatusBadRequest, CodeUsernameExists, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		Error(c, http.StatusBadRequest, CodeEmailExists, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		Error(c, http.StatusUnauthorized, CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrUnauthenticated):
		Error(c, http.StatusUnauthorized, CodeUnauthorized, err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		Error(c, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		Error(c, http.StatusNotFound, CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrQuotaExceeded):
		Error(c, http.StatusTooManyRequests, CodeQuotaExceeded, err.Error())
	case errors.Is(err, app.ErrUpstream):
		Error(c, http.StatusBadGateway, CodeUpstream, fallback)
	default:
		Error(c, http.StatusInternalServerError, CodeInternalServer, fallback)
	}
}
