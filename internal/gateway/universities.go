package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/Babylonias/adminnexus-portal/internal/domain"
	"github.com/Babylonias/adminnexus-portal/internal/slug"

	"go.uber.org/zap"
)

type wireUniversity struct {
	ID          wireID     `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Address     string     `json:"address"`
	Lat         wireNumber `json:"lat"`
	Lng         wireNumber `json:"lng"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

func normalizeUniversity(w wireUniversity, index int) (domain.University, error) {
	if w.ID == "" {
		return domain.University{}, fmt.Errorf("%w: university at index %d is missing required id field", ErrMalformed, index)
	}
	return domain.University{
		ID:          string(w.ID),
		Name:        w.Name,
		Slug:        w.Slug,
		Description: w.Description,
		Address:     w.Address,
		Coordinate:  coordinate(w.Lat, w.Lng),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}, nil
}

// coordinate 只有经纬度同时存在时才构成坐标
func coordinate(lat, lng wireNumber) *domain.Coordinate {
	if lat.Float() == nil || lng.Float() == nil {
		return nil
	}
	return &domain.Coordinate{Lat: *lat.Float(), Lng: *lng.Float()}
}

// Universities 大学资源网关
type Universities struct {
	res *resource[wireUniversity, domain.University]
}

// NewUniversities 创建大学网关
func NewUniversities(c *Client) *Universities {
	return &Universities{res: &resource[wireUniversity, domain.University]{
		client:    c,
		name:      "university",
		basePath:  "/api/universities",
		listKey:   "universities",
		recordKey: "university",
		normalize: normalizeUniversity,
	}}
}

// List GET /api/universities
func (g *Universities) List(ctx context.Context) ([]domain.University, error) {
	return g.res.list(ctx, g.res.basePath, nil)
}

// Get GET /api/universities/{id}，失败视为不存在
func (g *Universities) Get(ctx context.Context, id string) (*domain.University, bool) {
	return g.res.get(ctx, id)
}

// Create POST /api/universities (multipart)
func (g *Universities) Create(ctx context.Context, p domain.UniversityPayload) (domain.University, error) {
	f, err := g.buildForm(p)
	if err != nil {
		return domain.University{}, err
	}
	return g.res.submit(ctx, "", f)
}

// Update POST /api/universities/{id} + _method=PUT
func (g *Universities) Update(ctx context.Context, id string, p domain.UniversityPayload) (domain.University, error) {
	if id == "" {
		return domain.University{}, fmt.Errorf("%w: university id is required for update", ErrPrecondition)
	}
	f, err := g.buildForm(p)
	if err != nil {
		return domain.University{}, err
	}
	return g.res.submit(ctx, id, f)
}

// Delete DELETE /api/universities/{id}
func (g *Universities) Delete(ctx context.Context, id string) error {
	return g.res.remove(ctx, id)
}

func (g *Universities) buildForm(p domain.UniversityPayload) (*form, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	f := &form{}
	f.set("name", p.Name)
	f.set("slug", authoritativeSlug(g.res.client.logger, p.Name, p.Slug))
	f.setCoordinate(p.Coordinate)
	f.setIfNotEmpty("description", p.Description)
	f.setIfNotEmpty("address", strings.TrimSpace(p.Address))
	return f, nil
}

// authoritativeSlug 客户端是 slug 的唯一来源：总是由名称重新生成
func authoritativeSlug(logger *zap.Logger, name, provided string) string {
	s := slug.Make(name)
	if provided != "" && provided != s {
		logger.Debug("Overriding provided slug with derived slug",
			zap.String("provided", provided),
			zap.String("derived", s),
		)
	}
	return s
}
