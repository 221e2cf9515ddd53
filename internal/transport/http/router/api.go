package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"swipe-engine/internal/core/auth"
	"swipe-engine/internal/core/config"
	"swipe-engine/internal/core/server"
	"swipe-engine/internal/feature/boost"
	"swipe-engine/internal/feature/catalog"
	"swipe-engine/internal/feature/credit"
	"swipe-engine/internal/feature/feed"
	"swipe-engine/internal/feature/match"
	"swipe-engine/internal/feature/notify"
	"swipe-engine/internal/feature/swipe"
	"swipe-engine/internal/repo"
	"swipe-engine/internal/transport/http/handler"
	mdw "swipe-engine/internal/transport/http/middleware"
)

// Deps 两个引擎共用的依赖
type Deps struct {
	Log     *zap.Logger
	DB      *gorm.DB
	Store   *repo.Store
	JWT     *auth.JWTer
	Limits  config.Limits
	Mode    string
	Credits config.Credits

	Feed     *feed.Feed
	Recorder *swipe.Recorder
	Detector *match.Detector
	Ledger   *credit.Ledger
	Catalog  *catalog.Catalog
	Boost    *boost.Service
	Hub      *notify.Hub
}

// base 通用中间件链，顺序与线上一致
func base(d Deps) *gin.Engine {
	r := server.NewRouter(d.Log, server.Options{Mode: d.Mode, Recovery: mdw.Recovered})
	l := d.Limits
	chain := []gin.HandlerFunc{mdw.RequestID(), mdw.Metrics(), mdw.AccessLog(d.Log)}
	if l.RPS > 0 {
		chain = append(chain, mdw.RateLimit(rate.Limit(l.RPS), max(l.Burst, 1)))
	}
	if l.PerIPRPS > 0 {
		chain = append(chain, mdw.RateLimitPerIP(rate.Limit(l.PerIPRPS), max(l.PerIPBurst, 1), 10*time.Minute))
	}
	if l.Concurrency > 0 {
		chain = append(chain, mdw.ConcurrencyLimit(l.Concurrency))
	}
	if l.MaxBodyBytes > 0 {
		chain = append(chain, mdw.MaxBodyBytes(l.MaxBodyBytes))
	}
	if l.TimeoutSec > 0 {
		chain = append(chain, mdw.Timeout(time.Duration(l.TimeoutSec)*time.Second))
	}
	r.Use(chain...)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func NewAPIEngine(d Deps) *gin.Engine {
	r := base(d)

	api := r.Group("/api/v1")
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(d.JWT, ""))

	reg := &Registry{}
	reg.Register(
		&handler.SwipeHandler{Feed: d.Feed, Recorder: d.Recorder, Detector: d.Detector, Log: d.Log},
		&handler.CreditHandler{Ledger: d.Ledger, Catalog: d.Catalog, Log: d.Log},
		&handler.ProjectHandler{DB: d.DB, Store: d.Store, Log: d.Log},
		&handler.BoostHandler{Boost: d.Boost, Log: d.Log},
		&handler.NotifyHandler{Hub: d.Hub, Log: d.Log},
	)
	reg.MountAPI(api, authed)
	return r
}
