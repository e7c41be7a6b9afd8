package gateway

import (
	"context"
	"fmt"

	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"github.com/go-resty/resty/v2"
)

type wireUser struct {
	ID        wireID `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func normalizeUser(w wireUser, index int) (domain.User, error) {
	if w.ID == "" {
		return domain.User{}, fmt.Errorf("%w: user at index %d is missing required id field", ErrMalformed, index)
	}
	return domain.User{
		ID:        string(w.ID),
		FirstName: w.FirstName,
		LastName:  w.LastName,
		Username:  w.Username,
		Email:     w.Email,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}, nil
}

const (
	profilePath        = "/api/users/me"
	changePasswordPath = "/api/users/change-password"
)

// Users 用户管理网关（JSON body，响应通常包装在 {"data": ...} 中）
type Users struct {
	res *resource[wireUser, domain.User]
}

// NewUsers 创建用户网关
func NewUsers(c *Client) *Users {
	return &Users{res: &resource[wireUser, domain.User]{
		client:    c,
		name:      "user",
		basePath:  "/api/users",
		listKey:   "users",
		recordKey: "user",
		normalize: normalizeUser,
	}}
}

// List GET /api/users
func (g *Users) List(ctx context.Context) ([]domain.User, error) {
	return g.res.list(ctx, g.res.basePath, nil)
}

// Get GET /api/users/{id}，失败视为不存在
func (g *Users) Get(ctx context.Context, id string) (*domain.User, bool) {
	return g.res.get(ctx, id)
}

// Create POST /api/users
func (g *Users) Create(ctx context.Context, p domain.UserPayload) (domain.User, error) {
	if err := p.ValidateNew(); err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return g.res.sendJSON(ctx, resty.MethodPost, g.res.basePath, nil, p)
}

// Update PUT /api/users/{id}，只提交非空字段
func (g *Users) Update(ctx context.Context, id string, p domain.UserPayload) (domain.User, error) {
	if id == "" {
		return domain.User{}, fmt.Errorf("%w: user id is required for update", ErrPrecondition)
	}
	if err := p.Validate(); err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return g.res.sendJSON(ctx, resty.MethodPut, g.res.itemPath(), map[string]string{"id": id}, p)
}

// Delete DELETE /api/users/{id}
func (g *Users) Delete(ctx context.Context, id string) error {
	return g.res.remove(ctx, id)
}

// Profile GET /api/users/me
func (g *Users) Profile(ctx context.Context) (domain.User, error) {
	resp, err := g.res.client.do(ctx, resty.MethodGet, profilePath, nil)
	if err != nil {
		return domain.User{}, err
	}
	return g.res.decodeOne(resp.Body())
}

// UpdateProfile PUT /api/users/me
func (g *Users) UpdateProfile(ctx context.Context, p domain.UserPayload) (domain.User, error) {
	if err := p.Validate(); err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return g.res.sendJSON(ctx, resty.MethodPut, profilePath, nil, p)
}

// ChangePassword POST /api/users/change-password，成功时响应体忽略
func (g *Users) ChangePassword(ctx context.Context, p domain.PasswordChange) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return g.res.client.PostJSON(ctx, changePasswordPath, p, nil)
}
