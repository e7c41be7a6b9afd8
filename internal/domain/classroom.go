package domain

// ClassroomStatus 教室状态（封闭枚举）
type ClassroomStatus string

const (
	StatusActive      ClassroomStatus = "active"
	StatusMaintenance ClassroomStatus = "maintenance"
	StatusDraft       ClassroomStatus = "draft"
)

// DefaultFormStatus 新建表单的默认状态
const DefaultFormStatus = StatusDraft

// ClassroomStatuses 全部合法状态
var ClassroomStatuses = []ClassroomStatus{StatusActive, StatusMaintenance, StatusDraft}

// Valid 是否为合法状态
func (s ClassroomStatus) Valid() bool {
	switch s {
	case StatusActive, StatusMaintenance, StatusDraft:
		return true
	}
	return false
}

// NormalizeStatus 规范化服务端返回的状态，缺失或未知值一律视为 active
func NormalizeStatus(raw string) ClassroomStatus {
	s := ClassroomStatus(raw)
	if s.Valid() {
		return s
	}
	return StatusActive
}

// Classroom 教室/阶梯教室
type Classroom struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Slug         string             `json:"slug"`
	Capacity     int                `json:"capacity"`
	Equipment    []string           `json:"equipment"`
	Status       ClassroomStatus    `json:"status"`
	Description  string             `json:"description"`
	Coordinate   *Coordinate        `json:"coordinate,omitempty"`
	MainImage    string             `json:"main_image,omitempty"`
	Annexes      []string           `json:"annexes"`
	UniversityID string             `json:"university_id,omitempty"`
	University   *UniversitySummary `json:"university,omitempty"`
	CreatedAt    string             `json:"created_at,omitempty"`
	UpdatedAt    string             `json:"updated_at,omitempty"`
}

func (c Classroom) EntityID() string { return c.ID }
