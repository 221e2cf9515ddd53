package response

// Resp is the envelope every endpoint answers with.
type Resp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Kind string `json:"kind,omitempty"`
	Data any    `json:"data"`
}

// New 保证 data 不为 null
func New(code int, msg string, data any) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data any) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error 失败响应；customMsg 为空时用默认文案
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, nil)
}

// ErrorKind 额外带上稳定的错误类别，便于客户端分支处理
func ErrorKind(code int, kind, msg string) Resp {
	r := Error(code, msg)
	r.Kind = kind
	return r
}

// Page 列表统一结构
type Page[T any] struct {
	List  []T   `json:"list"`
	Total int64 `json:"total"`
}
