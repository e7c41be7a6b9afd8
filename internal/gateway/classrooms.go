package gateway

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"github.com/go-resty/resty/v2"
)

type wireUniversitySummary struct {
	ID   wireID `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type wireClassroom struct {
	ID              wireID                 `json:"id"`
	Name            string                 `json:"name"`
	Slug            string                 `json:"slug"`
	Lat             wireNumber             `json:"lat"`
	Lng             wireNumber             `json:"lng"`
	Capacity        wireInt                `json:"capacity"`
	Equipment       wireStrings            `json:"equipment"`
	Status          string                 `json:"status"`
	Description     string                 `json:"description"`
	MainImage       string                 `json:"main_image"`
	Annexes         wireStrings            `json:"annexes"`
	UniversityID    wireID                 `json:"university_id"`
	UniversityIDAlt wireID                 `json:"universityId"`
	University      *wireUniversitySummary `json:"university"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
}

func normalizeClassroom(w wireClassroom, index int) (domain.Classroom, error) {
	if w.ID == "" {
		return domain.Classroom{}, fmt.Errorf("%w: classroom at index %d is missing required id field", ErrMalformed, index)
	}

	c := domain.Classroom{
		ID:          string(w.ID),
		Name:        w.Name,
		Slug:        w.Slug,
		Capacity:    int(w.Capacity),
		Equipment:   []string(w.Equipment),
		Status:      domain.NormalizeStatus(w.Status),
		Description: w.Description,
		Coordinate:  coordinate(w.Lat, w.Lng),
		MainImage:   w.MainImage,
		Annexes:     []string(w.Annexes),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
	if c.Equipment == nil {
		c.Equipment = []string{}
	}
	if c.Annexes == nil {
		c.Annexes = []string{}
	}

	switch {
	case w.UniversityID != "":
		c.UniversityID = string(w.UniversityID)
	case w.UniversityIDAlt != "":
		c.UniversityID = string(w.UniversityIDAlt)
	case w.University != nil:
		c.UniversityID = string(w.University.ID)
	}
	if w.University != nil {
		c.University = &domain.UniversitySummary{
			ID:   string(w.University.ID),
			Name: w.University.Name,
			Slug: w.University.Slug,
		}
	}
	return c, nil
}

// Classrooms 教室资源网关
type Classrooms struct {
	res *resource[wireClassroom, domain.Classroom]
}

// NewClassrooms 创建教室网关
func NewClassrooms(c *Client) *Classrooms {
	return &Classrooms{res: &resource[wireClassroom, domain.Classroom]{
		client:    c,
		name:      "classroom",
		basePath:  "/api/classrooms",
		listKey:   "classrooms",
		recordKey: "classroom",
		normalize: normalizeClassroom,
	}}
}

// List GET /api/classrooms
func (g *Classrooms) List(ctx context.Context) ([]domain.Classroom, error) {
	return g.res.list(ctx, g.res.basePath, nil)
}

// ListByUniversity GET /api/universities/{universityId}/classrooms
func (g *Classrooms) ListByUniversity(ctx context.Context, universityID string) ([]domain.Classroom, error) {
	if universityID == "" {
		return nil, fmt.Errorf("%w: university id is required", ErrPrecondition)
	}
	g.res.warnIfNotUUID(universityID)
	return g.res.list(ctx, "/api/universities/{universityId}/classrooms", func(req *resty.Request) {
		req.SetPathParam("universityId", universityID)
	})
}

// Get GET /api/classrooms/{id}，失败视为不存在
func (g *Classrooms) Get(ctx context.Context, id string) (*domain.Classroom, bool) {
	return g.res.get(ctx, id)
}

// Create POST /api/classrooms (multipart)
func (g *Classrooms) Create(ctx context.Context, p domain.ClassroomPayload) (domain.Classroom, error) {
	f, err := g.buildForm(p)
	if err != nil {
		return domain.Classroom{}, err
	}
	return g.res.submit(ctx, "", f)
}

// Update POST /api/classrooms/{id} + _method=PUT
func (g *Classrooms) Update(ctx context.Context, id string, p domain.ClassroomPayload) (domain.Classroom, error) {
	if id == "" {
		return domain.Classroom{}, fmt.Errorf("%w: classroom id is required for update", ErrPrecondition)
	}
	f, err := g.buildForm(p)
	if err != nil {
		return domain.Classroom{}, err
	}
	return g.res.submit(ctx, id, f)
}

// Delete DELETE /api/classrooms/{id}
func (g *Classrooms) Delete(ctx context.Context, id string) error {
	return g.res.remove(ctx, id)
}

// buildForm 字段：name, slug, lat, lng, university_id, description, capacity, status,
// equipment[i], main_image（仅文件）, annexes[i]（仅文件，i 为原列表中的位置）
func (g *Classrooms) buildForm(p domain.ClassroomPayload) (*form, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	f := &form{}
	f.set("name", p.Name)
	f.set("slug", authoritativeSlug(g.res.client.logger, p.Name, p.Slug))
	f.setCoordinate(p.Coordinate)
	f.setIfNotEmpty("university_id", p.UniversityID)
	f.setIfNotEmpty("description", p.Description)
	f.set("capacity", strconv.Itoa(p.Capacity))
	f.set("status", string(p.Status))
	f.setList("equipment", p.Equipment)
	f.attach("main_image", p.MainImage)
	for i := range p.Annexes {
		f.attach(indexedKey("annexes", i), &p.Annexes[i])
	}
	return f, nil
}

// UniversityClassrooms 某所大学下的教室视图：List 只返回该大学的教室，
// 新建时未指定大学则归属该大学
type UniversityClassrooms struct {
	*Classrooms
	universityID string
}

// ForUniversity 返回指定大学的教室视图
func (g *Classrooms) ForUniversity(universityID string) *UniversityClassrooms {
	return &UniversityClassrooms{Classrooms: g, universityID: universityID}
}

// UniversityID 视图对应的大学
func (v *UniversityClassrooms) UniversityID() string {
	return v.universityID
}

// List GET /api/universities/{universityId}/classrooms
func (v *UniversityClassrooms) List(ctx context.Context) ([]domain.Classroom, error) {
	return v.ListByUniversity(ctx, v.universityID)
}

// Create 与 Classrooms.Create 相同，university_id 缺省为视图对应的大学
func (v *UniversityClassrooms) Create(ctx context.Context, p domain.ClassroomPayload) (domain.Classroom, error) {
	if p.UniversityID == "" {
		p.UniversityID = v.universityID
	}
	return v.Classrooms.Create(ctx, p)
}
