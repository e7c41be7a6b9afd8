package domain

import (
	"fmt"
	"strings"
)

// User 后台用户
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (u User) EntityID() string { return u.ID }

// DisplayName 优先使用姓名，其次用户名，最后邮箱
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// UserPayload 用户创建/更新请求（JSON）；更新时空字段不提交
type UserPayload struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Password  string `json:"password,omitempty" validate:"omitempty,min=8"`
}

// Validate 校验部分更新
func (p *UserPayload) Validate() error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(p.Email)
	return validationError(validate.Struct(p))
}

// ValidateNew 校验新建：邮箱必填
func (p *UserPayload) ValidateNew() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Email == "" {
		return fmt.Errorf("%w: Email(required)", ErrInvalidPayload)
	}
	return nil
}

// PasswordChange 修改当前用户密码
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}

// Validate 校验密码修改请求
func (p *PasswordChange) Validate() error {
	return validationError(validate.Struct(p))
}
