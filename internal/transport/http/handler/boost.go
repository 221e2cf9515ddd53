package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/boost"
	"swipe-engine/internal/transport/http/ez"
)

// BoostHandler 付费置顶：provider 购买、公开的 featured 列表、运营调价
type BoostHandler struct {
	Boost *boost.Service
	Log   *zap.Logger
}

func (h *BoostHandler) Priority() int { return 30 }

func (h *BoostHandler) MountPublic(g *gin.RouterGroup) {
	type featuredQ struct {
		Limit int `form:"limit"`
	}
	ez.RegisterAction(ez.New(g, h.Log), ez.Action[featuredQ, []domain.PublicProfile]{
		Method: http.MethodGet,
		Path:   "/featured",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *featuredQ) ([]domain.PublicProfile, error) {
			return h.Boost.Featured(c, in.Limit)
		},
	})
}

func (h *BoostHandler) MountAPI(g *gin.RouterGroup) {
	ez.RegisterAction(ez.New(g, h.Log), ez.Action[struct{}, *boost.Result]{
		Method: http.MethodPost,
		Path:   "/boost",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*boost.Result, error) {
			return h.Boost.Boost(c, uid(c))
		},
	})
}

func (h *BoostHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.Log)
	roles := []string{string(domain.KindAdmin)}

	ez.RegisterAction(e, ez.Action[struct{}, *domain.BoostConfig]{
		Method: http.MethodGet,
		Path:   "/boost-config",
		Binder: ez.BindNone,
		Roles:  roles,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.BoostConfig, error) {
			return h.Boost.Config(c)
		},
	})

	ez.RegisterAction(e, ez.Action[boost.Update, *domain.BoostConfig]{
		Method: http.MethodPut,
		Path:   "/boost-config",
		Binder: ez.BindJSON,
		Roles:  roles,
		Handler: func(c *gin.Context, in *boost.Update) (*domain.BoostConfig, error) {
			return h.Boost.Configure(c, *in)
		},
	})
}
