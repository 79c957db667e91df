package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/transport/http/middleware"
	"docchat/internal/transport/http/response"
)

func requireUser(c *gin.Context) (uint, bool) {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, false
	}
	return userID, true
}
