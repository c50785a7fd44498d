// Package auth 提供提交前的身份与令牌检查
package auth

import (
	"context"

	"github.com/waypointhq/waypoint/internal/model"
)

// Identity 当前用户身份
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// TokenProvider 令牌提供者
// 提交动作开始前先取当前用户与新鲜令牌，任一失败则整个提交不发起
type TokenProvider interface {
	CurrentUser(ctx context.Context) (*Identity, error)
	FreshToken(ctx context.Context) (string, error)
}

// StaticProvider 基于静态配置令牌的提供者
type StaticProvider struct {
	token  string
	userID string
}

// NewStaticProvider 创建静态令牌提供者
func NewStaticProvider(token, userID string) *StaticProvider {
	return &StaticProvider{token: token, userID: userID}
}

// CurrentUser 返回配置的用户身份
func (p *StaticProvider) CurrentUser(ctx context.Context) (*Identity, error) {
	if p.token == "" {
		return nil, model.NewAuthError("未登录或登录已过期")
	}
	return &Identity{UserID: p.userID}, nil
}

// FreshToken 返回配置的令牌
func (p *StaticProvider) FreshToken(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", model.NewAuthError("未登录或登录已过期")
	}
	return p.token, nil
}
