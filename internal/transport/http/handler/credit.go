package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/catalog"
	"swipe-engine/internal/feature/credit"
	"swipe-engine/internal/transport/http/ez"
)

type CreditHandler struct {
	Ledger  *credit.Ledger
	Catalog *catalog.Catalog
	Log     *zap.Logger
}

func (h *CreditHandler) Priority() int { return 20 }

// MountPublic GET /packs 无需登录
func (h *CreditHandler) MountPublic(g *gin.RouterGroup) {
	ez.RegisterAction(ez.New(g, h.Log), ez.Action[struct{}, []domain.SubscriptionPack]{
		Method: http.MethodGet,
		Path:   "/packs",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.SubscriptionPack, error) {
			return h.Catalog.Packs(c)
		},
	})
}

func (h *CreditHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.Log)

	ez.RegisterAction(e, ez.Action[struct{}, *credit.Account]{
		Method: http.MethodGet,
		Path:   "/credits",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*credit.Account, error) {
			return h.Ledger.Balance(c, uid(c))
		},
	})

	type historyQ struct {
		Limit int `form:"limit"`
	}
	ez.RegisterAction(e, ez.Action[historyQ, []domain.CreditEntry]{
		Method: http.MethodGet,
		Path:   "/credits/history",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *historyQ) ([]domain.CreditEntry, error) {
			return h.Ledger.History(c, uid(c), in.Limit)
		},
	})

	// requestId 由客户端生成，重复提交不会重复加额度
	type purchaseIn struct {
		Pack      string `json:"pack" binding:"required"`
		RequestID string `json:"requestId" binding:"required,max=64"`
	}
	ez.RegisterAction(e, ez.Action[purchaseIn, *credit.Account]{
		Method: http.MethodPost,
		Path:   "/purchases",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *purchaseIn) (*credit.Account, error) {
			p, err := h.Catalog.Find(c, in.Pack)
			if err != nil {
				return nil, err
			}
			return h.Ledger.Grant(c, uid(c), p, in.RequestID)
		},
	})
}
