package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swipe-engine/internal/feature/feed"
	"swipe-engine/internal/feature/match"
	"swipe-engine/internal/feature/swipe"
	"swipe-engine/internal/transport/http/ez"
)

// SwipeHandler 挂载 deck / swipe / match 三个用户端接口
type SwipeHandler struct {
	Feed     *feed.Feed
	Recorder *swipe.Recorder
	Detector *match.Detector
	Log      *zap.Logger
}

func (h *SwipeHandler) Priority() int { return 10 }

func (h *SwipeHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.Log)

	type pageQ struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	ez.RegisterAction(e, ez.Action[pageQ, []feed.Candidate]{
		Method: http.MethodGet,
		Path:   "/candidates",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *pageQ) ([]feed.Candidate, error) {
			return h.Feed.Next(c, uid(c), in.Limit, in.Offset)
		},
	})

	ez.RegisterAction(e, ez.Action[swipe.Request, *swipe.Result]{
		Method: http.MethodPost,
		Path:   "/swipes",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *swipe.Request) (*swipe.Result, error) {
			return h.Recorder.Record(c, uid(c), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []match.MatchView]{
		Method: http.MethodGet,
		Path:   "/matches",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]match.MatchView, error) {
			return h.Detector.List(c, uid(c))
		},
	})
}

func uid(c *gin.Context) string { return c.GetString(ez.KeyUserID) }
