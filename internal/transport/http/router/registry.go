package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// 模块可选择实现其中一个或多个接口
type APIModule interface{ MountAPI(*gin.RouterGroup) }    // 需登录
type PublicModule interface{ MountPublic(*gin.RouterGroup) } // 免登录
type AdminModule interface{ MountAdmin(*gin.RouterGroup) }

// 可选：实现该接口可控制挂载顺序（数值越小越先挂），不实现默认 100
type prioritizer interface{ Priority() int }

// Registry 按引擎实例收集模块，测试里可各自构建互不干扰
type Registry struct {
	mods []any
}

// Register 统一注册入口：挂载时按类型断言分发
func (r *Registry) Register(mods ...any) *Registry {
	r.mods = append(r.mods, mods...)
	return r
}

func (r *Registry) sorted() []any {
	mods := append([]any(nil), r.mods...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	return mods
}

// MountAPI 公共接口挂 public，鉴权接口挂 authed
func (r *Registry) MountAPI(public, authed *gin.RouterGroup) {
	for _, m := range r.sorted() {
		if p, ok := m.(PublicModule); ok {
			p.MountPublic(public)
		}
		if a, ok := m.(APIModule); ok {
			a.MountAPI(authed)
		}
	}
}

func (r *Registry) MountAdmin(admin *gin.RouterGroup) {
	for _, m := range r.sorted() {
		if a, ok := m.(AdminModule); ok {
			a.MountAdmin(admin)
		}
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
