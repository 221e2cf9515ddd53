package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "swipe-engine/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小；超限时 bind 失败，这里兜底返回统一结构
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			abort(c, resp.CodeBadRequest, "request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
