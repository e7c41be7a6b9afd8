package domain

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// File 待上传的二进制文件
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// ImageRef 图片引用：要么是待上传文件，要么是已持久化的 URL
type ImageRef struct {
	File *File
	URL  string
}

// IsUpload 是否需要作为二进制 part 上传
func (r ImageRef) IsUpload() bool {
	return r.File != nil && r.File.Reader != nil
}

// FileImage 以文件构造 ImageRef
func FileImage(name, contentType string, r io.Reader) ImageRef {
	return ImageRef{File: &File{Name: name, ContentType: contentType, Reader: r}}
}

// URLImage 以已存在的 URL 构造 ImageRef
func URLImage(url string) ImageRef {
	return ImageRef{URL: url}
}

// UniversityPayload 大学创建/更新表单
type UniversityPayload struct {
	Name        string `validate:"required"`
	Slug        string
	Description string
	Address     string
	Coordinate  *Coordinate
}

// Validate 校验表单
func (p *UniversityPayload) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	return validationError(validate.Struct(p))
}

// ClassroomPayload 教室创建/更新表单
type ClassroomPayload struct {
	Name         string `validate:"required"`
	Slug         string
	Description  string
	Capacity     int             `validate:"gte=0"`
	Status       ClassroomStatus `validate:"omitempty,oneof=active maintenance draft"`
	Equipment    []string
	Coordinate   *Coordinate
	UniversityID string
	MainImage    *ImageRef
	Annexes      []ImageRef
}

// NewClassroomPayload 新建表单的默认值：draft，容量 0
func NewClassroomPayload() ClassroomPayload {
	return ClassroomPayload{Status: DefaultFormStatus}
}

// ClassroomPayloadFrom 用已有教室填充编辑表单（图片以 URL 形式保留，不会重复上传）
func ClassroomPayloadFrom(c Classroom) ClassroomPayload {
	p := ClassroomPayload{
		Name:         c.Name,
		Slug:         c.Slug,
		Description:  c.Description,
		Capacity:     c.Capacity,
		Status:       c.Status,
		Equipment:    append([]string(nil), c.Equipment...),
		UniversityID: c.UniversityID,
	}
	if c.Coordinate != nil {
		coord := *c.Coordinate
		p.Coordinate = &coord
	}
	if c.MainImage != "" {
		img := URLImage(c.MainImage)
		p.MainImage = &img
	}
	for _, a := range c.Annexes {
		p.Annexes = append(p.Annexes, URLImage(a))
	}
	return p
}

// ClampCapacity 表单层规则：容量不能小于 0
func (p *ClassroomPayload) ClampCapacity() {
	if p.Capacity < 0 {
		p.Capacity = 0
	}
}

// AddEquipment 追加设备（去除首尾空白，空字符串忽略，允许重复）
func (p *ClassroomPayload) AddEquipment(item string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	p.Equipment = append(p.Equipment, item)
}

// RemoveEquipment 按下标删除设备
func (p *ClassroomPayload) RemoveEquipment(index int) {
	if index < 0 || index >= len(p.Equipment) {
		return
	}
	p.Equipment = append(p.Equipment[:index:index], p.Equipment[index+1:]...)
}

// Validate 校验表单；容量先做下限修正，空状态按 draft 处理
func (p *ClassroomPayload) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	p.ClampCapacity()
	if p.Status == "" {
		p.Status = DefaultFormStatus
	}
	return validationError(validate.Struct(p))
}

// ErrInvalidPayload 表单校验失败
var ErrInvalidPayload = errors.New("invalid payload")

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
}
