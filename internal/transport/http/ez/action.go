package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swipe-engine/internal/domain"
	mdw "swipe-engine/internal/transport/http/middleware"
	resp "swipe-engine/internal/transport/http/response"
)

// 上下文 key，由 middleware.AuthJWT 写入
const (
	KeyUserID = mdw.KeyUserID
	KeyRole   = mdw.KeyRole
)

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, log *zap.Logger) EZ {
	if log == nil {
		log = zap.NewNop()
	}
	return EZ{g: g, log: log}
}

func (e EZ) Group() *gin.RouterGroup { return e.g }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"
	BindQuery Binder = "query"
	BindNone  Binder = "none" // 自己从 c.Param 取
)

// AErr 统一错误对象（配合 resp.Error(int, msg)）
type AErr struct {
	Code int
	Kind string
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

var kindCodes = map[domain.ErrorKind]int{
	domain.KindDuplicateSwipe:         resp.CodeConflict,
	domain.KindPurchaseAlreadyApplied: resp.CodeConflict,
	domain.KindInsufficientCredits:    resp.CodePaymentRequired,
	domain.KindUnknownEntity:          resp.CodeNotFound,
	domain.KindSelfTarget:             resp.CodeUnprocessable,
	domain.KindIneligibleTarget:       resp.CodeUnprocessable,
	domain.KindInvalidArgument:        resp.CodeBadRequest,
	domain.KindNotAllowed:             resp.CodeForbidden,
}

// Classify 把任意错误归一为 AErr；未知错误一律 500
func Classify(err error) *AErr {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae
	}
	var de *domain.Error
	if errors.As(err, &de) {
		if code, ok := kindCodes[de.Kind]; ok {
			return &AErr{Code: code, Kind: string(de.Kind), Msg: de.Msg, Err: err}
		}
	}
	return &AErr{Code: resp.CodeServerError, Msg: "internal error", Err: err}
}

func write(c *gin.Context, r resp.Resp) {
	c.Set(mdw.KeyBizCode, r.Code)
	c.JSON(http.StatusOK, r)
}

// Fail 写出错误响应；5xx 记录日志且不向客户端暴露细节
func Fail(c *gin.Context, log *zap.Logger, err error) {
	ae := Classify(err)
	if ae.Code >= resp.CodeServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("uid", c.GetString(KeyUserID)),
			zap.Error(err))
	}
	write(c, resp.ErrorKind(ae.Code, ae.Kind, ae.Error()))
}

// Action 非 CRUD 接口的一行注册：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string
	Path    string
	Binder  Binder
	Auth    bool     // 要求 userId
	Roles   []string // 限定角色（可选）
	Handler func(c *gin.Context, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		if a.Auth || len(a.Roles) > 0 {
			if c.GetString(KeyUserID) == "" {
				write(c, resp.Error(resp.CodeUnauthorized, "unauthorized"))
				return
			}
			if len(a.Roles) > 0 {
				role := c.GetString(KeyRole)
				ok := false
				for _, r := range a.Roles {
					if role == r {
						ok = true
						break
					}
				}
				if !ok {
					write(c, resp.Error(resp.CodeForbidden, "forbidden"))
					return
				}
			}
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			write(c, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, e.log, err)
			return
		}
		write(c, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}
