package domain

// Entity 可被集合 store 按 ID 管理的实体
type Entity interface {
	EntityID() string
}

// Coordinate 规范化后的经纬度（不存在时使用 nil 指针）
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// University 大学
type University struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description string      `json:"description,omitempty"`
	Address     string      `json:"address,omitempty"`
	Coordinate  *Coordinate `json:"coordinate,omitempty"`
	CreatedAt   string      `json:"created_at,omitempty"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
}

func (u University) EntityID() string { return u.ID }

// UniversitySummary 教室记录中内嵌的大学摘要
type UniversitySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}
