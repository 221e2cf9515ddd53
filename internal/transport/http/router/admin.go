package router

import (
	"github.com/gin-gonic/gin"

	"swipe-engine/internal/domain"
	"swipe-engine/internal/transport/http/handler"
	mdw "swipe-engine/internal/transport/http/middleware"
)

func NewAdminEngine(d Deps) *gin.Engine {
	r := base(d)

	// 管理端 v1（统一要求 admin 角色）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.JWT, string(domain.KindAdmin)))

	reg := &Registry{}
	reg.Register(
		&handler.AdminHandler{
			Store:          d.Store,
			Ledger:         d.Ledger,
			WelcomeCredits: d.Credits.WelcomeCredits,
			Log:            d.Log.Named("admin"),
		},
		&handler.BoostHandler{Boost: d.Boost, Log: d.Log.Named("admin")},
	)
	reg.MountAdmin(admin)
	return r
}
