package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"swipe-engine/internal/domain"
	"swipe-engine/internal/repo"
	"swipe-engine/internal/transport/http/ez"
)

// ProjectHandler 需求方自己的项目：创建 / 列表 / 详情 / 关闭，不支持删除
type ProjectHandler struct {
	DB    *gorm.DB
	Store *repo.Store
	Log   *zap.Logger
}

func (h *ProjectHandler) Priority() int { return 30 }

func (h *ProjectHandler) MountAPI(g *gin.RouterGroup) {
	ez.Crud(ez.CrudConfig[domain.Project]{
		DB:          h.DB,
		Group:       g,
		Path:        "/projects",
		New:         func() *domain.Project { return &domain.Project{} },
		Log:         h.Log,
		AllowCreate: true,
		AllowList:   true,
		AllowGet:    true,
		AllowUpdate: true,
		OwnerField:  "OwnerID",
		OrderBy:     "created_at DESC, id ASC",
		Hooks: ez.CrudHooks[domain.Project]{
			BeforeCreate: h.beforeCreate,
			BeforeUpdate: h.beforeUpdate,
		},
	})
}

func (h *ProjectHandler) beforeCreate(c *gin.Context, p *domain.Project) error {
	u, err := h.Store.FindUser(c, p.OwnerID)
	if err != nil {
		return err
	}
	if u == nil {
		return domain.Errorf(domain.KindUnknownEntity, "user %s not found", p.OwnerID)
	}
	if u.Kind != domain.KindRequester || !u.IsActive() {
		return domain.Errorf(domain.KindNotAllowed, "only active requesters post projects")
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return domain.Errorf(domain.KindInvalidArgument, "title is required")
	}
	p.Status = domain.ProjectOpen
	p.ClosedAt = nil
	p.CreatedAt, p.UpdatedAt = time.Time{}, time.Time{}
	return nil
}

// 状态只能 open → closed；其余字段按非零值更新
func (h *ProjectHandler) beforeUpdate(_ *gin.Context, cur, in *domain.Project) error {
	in.ClosedAt = nil
	in.CreatedAt, in.UpdatedAt = time.Time{}, time.Time{}
	if in.Title != "" {
		in.Title = strings.TrimSpace(in.Title)
		if in.Title == "" {
			return domain.Errorf(domain.KindInvalidArgument, "title must not be blank")
		}
	}
	switch in.Status {
	case "":
	case domain.ProjectClosed:
		if cur.IsOpen() {
			now := time.Now()
			in.ClosedAt = &now
		}
	case domain.ProjectOpen:
		if !cur.IsOpen() {
			return domain.Errorf(domain.KindInvalidArgument, "closed projects cannot be reopened")
		}
	default:
		return domain.Errorf(domain.KindInvalidArgument, "unknown status %q", in.Status)
	}
	return nil
}
