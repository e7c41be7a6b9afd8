package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport 网络层失败（DNS、连接被拒绝、超时等）
	ErrTransport = errors.New("transport error")
	// ErrMalformed 响应结构不符合预期，或记录缺少 id
	ErrMalformed = errors.New("malformed response")
	// ErrPrecondition 本地前置条件不满足，未发出任何请求
	ErrPrecondition = errors.New("precondition failed")
)

// Kind HTTP 状态错误分类
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server_error"
	default:
		return "other"
	}
}

// StatusError 非 2xx 响应
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Kind 按状态码分类
func (e *StatusError) Kind() Kind {
	switch {
	case e.Code == http.StatusNotFound:
		return KindNotFound
	case e.Code == http.StatusForbidden:
		return KindForbidden
	case e.Code == http.StatusUnauthorized:
		return KindUnauthorized
	case e.Code >= 500:
		return KindServer
	default:
		return KindOther
	}
}

// KindOf 返回错误对应的状态分类；非 StatusError 返回 KindOther
func KindOf(err error) Kind {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Kind()
	}
	return KindOther
}

// UserMessage 将网关错误转换为面向用户的提示
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	switch {
	case errors.As(err, &se):
		switch se.Kind() {
		case KindNotFound:
			return "The requested item was not found or has already been deleted"
		case KindForbidden:
			return "You do not have permission to perform this action"
		case KindUnauthorized:
			return "Your session has expired, please sign in again"
		case KindServer:
			return "Server error, please try again later"
		default:
			return fmt.Sprintf("Request rejected by the server (status %d)", se.Code)
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled or timed out"
	case errors.Is(err, ErrTransport):
		return "Unable to reach the server, check your connection"
	case errors.Is(err, ErrMalformed):
		return "The server returned an unexpected response"
	case errors.Is(err, ErrPrecondition):
		return err.Error()
	default:
		return err.Error()
	}
}
