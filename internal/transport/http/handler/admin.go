package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swipe-engine/internal/domain"
	"swipe-engine/internal/feature/credit"
	"swipe-engine/internal/repo"
	"swipe-engine/internal/transport/http/ez"
	resp "swipe-engine/internal/transport/http/response"
	"swipe-engine/pkg/utils"
)

// AdminHandler 运营后台：用户导入 / 审核 / 封禁 / 平台统计
type AdminHandler struct {
	Store          *repo.Store
	Ledger         *credit.Ledger
	WelcomeCredits int64
	Log            *zap.Logger
}

type UserImport struct {
	ID             string        `json:"id" binding:"omitempty,max=36"`
	Kind           domain.Kind   `json:"kind" binding:"required"`
	Status         domain.Status `json:"status"`
	Email          string        `json:"email" binding:"required,email"`
	DisplayName    string        `json:"displayName" binding:"max=64"`
	Location       string        `json:"location"`
	Description    string        `json:"description"`
	Profession     string        `json:"profession"`
	Certifications []string      `json:"certifications"`
	Rating         float64       `json:"rating" binding:"gte=0,lte=5"`
	RatingCount    int           `json:"ratingCount" binding:"gte=0"`
	HourlyRate     *float64      `json:"hourlyRate"`
	Available      *bool         `json:"available"`
}

type Stats struct {
	Users     []repo.UserCount  `json:"users"`
	Swipes    []repo.SwipeCount `json:"swipes"`
	Matches   int64             `json:"matches"`
	Purchases int64             `json:"purchases"`
}

func (h *AdminHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.Log)

	type listQ struct {
		Offset int           `form:"offset,default=0"`
		Limit  int           `form:"limit,default=20"`
		Kind   domain.Kind   `form:"kind"`
		Status domain.Status `form:"status"`
		Q      string        `form:"q"` // 按 email/displayName 模糊搜
	}
	ez.RegisterAction(e, ez.Action[listQ, resp.Page[domain.User]]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Roles:  []string{string(domain.KindAdmin)},
		Handler: func(c *gin.Context, in *listQ) (resp.Page[domain.User], error) {
			if in.Limit <= 0 || in.Limit > 100 {
				in.Limit = 20
			}
			if in.Offset < 0 {
				in.Offset = 0
			}
			users, total, err := h.Store.ListUsers(c, repo.UserFilter{Kind: in.Kind, Status: in.Status, Q: in.Q}, in.Offset, in.Limit)
			if err != nil {
				return resp.Page[domain.User]{}, ez.Internal("list users failed", err)
			}
			return resp.Page[domain.User]{List: users, Total: total}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[UserImport, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users",
		Binder: ez.BindJSON,
		Roles:  []string{string(domain.KindAdmin)},
		Handler: func(c *gin.Context, in *UserImport) (*domain.User, error) {
			return h.importUser(c, in)
		},
	})

	type statusIn struct {
		Status domain.Status `json:"status" binding:"required"`
	}
	ez.RegisterAction(e, ez.Action[statusIn, gin.H]{
		Method: http.MethodPatch,
		Path:   "/users/:id/status",
		Binder: ez.BindJSON,
		Roles:  []string{string(domain.KindAdmin)},
		Handler: func(c *gin.Context, in *statusIn) (gin.H, error) {
			if !in.Status.Valid() {
				return nil, ez.BadRequest("unknown status")
			}
			id := c.Param("id")
			ok, err := h.Store.SetUserStatus(c, id, in.Status)
			if err != nil {
				return nil, ez.Internal("set status failed", err)
			}
			if !ok {
				return nil, ez.NotFound("user not found")
			}
			h.Log.Info("user status changed", zap.String("user", id), zap.String("status", string(in.Status)),
				zap.String("by", uid(c)))
			return gin.H{"id": id, "status": in.Status}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, Stats]{
		Method: http.MethodGet,
		Path:   "/stats",
		Binder: ez.BindNone,
		Roles:  []string{string(domain.KindAdmin)},
		Handler: func(c *gin.Context, _ *struct{}) (Stats, error) {
			var (
				s   Stats
				err error
			)
			if s.Users, err = h.Store.CountUsers(c); err != nil {
				return s, ez.Internal("count users failed", err)
			}
			if s.Swipes, err = h.Store.CountSwipes(c); err != nil {
				return s, ez.Internal("count swipes failed", err)
			}
			if s.Matches, err = h.Store.CountMatches(c); err != nil {
				return s, ez.Internal("count matches failed", err)
			}
			if s.Purchases, err = h.Store.CountPurchases(c); err != nil {
				return s, ez.Internal("count purchases failed", err)
			}
			return s, nil
		},
	})
}

// importUser 新建或更新资料；kind 不可修改。服务商首次导入时开通额度账户
func (h *AdminHandler) importUser(c *gin.Context, in *UserImport) (*domain.User, error) {
	if !in.Kind.Valid() {
		return nil, ez.BadRequest("unknown kind")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, ez.BadRequest("unknown status")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var cur *domain.User
	var err error
	if in.ID != "" {
		cur, err = h.Store.FindUser(c, in.ID)
	} else {
		cur, err = h.Store.FindUserByEmail(c, email)
	}
	if err != nil {
		return nil, ez.Internal("find user failed", err)
	}

	u := cur
	if u == nil {
		id := in.ID
		if id == "" {
			id = utils.NewID()
		}
		u = &domain.User{ID: id, Kind: in.Kind, Status: domain.StatusPending, Available: true}
	} else if u.Kind != in.Kind {
		return nil, ez.BadRequest("kind cannot change")
	}
	if in.Status != "" {
		u.Status = in.Status
	}
	u.Email = email
	u.DisplayName = strings.TrimSpace(in.DisplayName)
	u.Location = in.Location
	u.Description = in.Description
	u.Profession = in.Profession
	u.Certifications = in.Certifications
	u.Rating = in.Rating
	u.RatingCount = in.RatingCount
	u.HourlyRate = in.HourlyRate
	if in.Available != nil {
		u.Available = *in.Available
	}

	if cur == nil {
		err = h.Store.CreateUser(c, u)
	} else {
		err = h.Store.UpdateUser(c, u)
	}
	if repo.IsDuplicate(err) {
		return nil, &ez.AErr{Code: resp.CodeConflict, Msg: "email already in use"}
	}
	if err != nil {
		return nil, ez.Internal("save user failed", err)
	}

	if u.Kind == domain.KindProvider {
		if err := h.Ledger.Open(c, u.ID, h.WelcomeCredits); err != nil {
			return nil, err
		}
	}
	h.Log.Info("user imported", zap.String("user", u.ID), zap.String("kind", string(u.Kind)),
		zap.Bool("created", cur == nil))
	return u, nil
}
