package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
)

// Mode 表示认证模式。
type Mode string

const (
	// ModeDisabled 关闭认证，所有请求直接放行。
	ModeDisabled Mode = "disabled"
	// ModeStatic 使用配置中的静态令牌认证。
	ModeStatic Mode = "static"
)

var (
	// ErrMissingToken 表示请求未携带令牌。
	ErrMissingToken = errors.New("缺少访问令牌")
	// ErrInvalidToken 表示令牌不匹配。
	ErrInvalidToken = errors.New("访问令牌无效")
)

// Subject 描述通过认证的调用方。
type Subject struct {
	Name string
}

// Service 负责请求的认证。静态令牌为空时退化为关闭模式。
type Service struct {
	mode  Mode
	token string
	audit *slog.Logger
}

// NewService 创建认证服务。
func NewService(token string, audit *slog.Logger) *Service {
	token = strings.TrimSpace(token)
	mode := ModeStatic
	if token == "" {
		mode = ModeDisabled
	}
	return &Service{mode: mode, token: token, audit: audit}
}

// Mode 返回当前认证模式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest 校验 Authorization 头中的 Bearer 令牌。
func (s *Service) AuthenticateRequest(authorization string) (*Subject, error) {
	if s == nil || s.mode == ModeDisabled {
		return &Subject{Name: "anonymous"}, nil
	}
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return nil, ErrMissingToken
	}
	token := authorization
	if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		token = strings.TrimSpace(authorization[len("bearer "):])
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return nil, ErrInvalidToken
	}
	return &Subject{Name: "api-token"}, nil
}
