package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swipe-engine/internal/feature/notify"
	"swipe-engine/internal/transport/http/ez"
)

// NotifyHandler GET /ws 升级为 websocket，推送 match 等实时事件
type NotifyHandler struct {
	Hub *notify.Hub
	Log *zap.Logger
}

func (h *NotifyHandler) Priority() int { return 40 }

func (h *NotifyHandler) MountAPI(g *gin.RouterGroup) {
	g.GET("/ws", func(c *gin.Context) {
		id := uid(c)
		if id == "" {
			ez.Fail(c, h.Log, ez.Unauthorized("unauthorized"))
			return
		}
		// 读写协程不使用请求 context，这里返回即释放并发名额
		if err := h.Hub.Serve(c.Writer, c.Request, id); err != nil {
			h.Log.Debug("websocket not served", zap.String("uid", id), zap.Error(err))
		}
	})
}
