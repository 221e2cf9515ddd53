package middleware

import (
	"github.com/gin-gonic/gin"

	resp "swipe-engine/internal/transport/http/response"
)

// Recovered 作为 ginzap.CustomRecoveryWithZap 的回调，panic 时仍返回统一结构
func Recovered(c *gin.Context, _ any) {
	abort(c, resp.CodeServerError, "internal error")
}
