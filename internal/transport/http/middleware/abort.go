package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "swipe-engine/internal/transport/http/response"
)

func abort(c *gin.Context, code int, msg string) {
	c.Set(KeyBizCode, code)
	c.AbortWithStatusJSON(http.StatusOK, resp.Error(code, msg))
}
