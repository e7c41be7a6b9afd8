package domain

import "github.com/google/uuid"

// IsValidUUID 校验 RFC 4122 格式（版本 1-5）的 UUID 字符串
// 不合法的 ID 只用于告警，不会阻止请求
func IsValidUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	v := u.Version()
	return v >= 1 && v <= 5 && u.Variant() == uuid.RFC4122
}

// NewTempID 生成临时 UUIDv4（测试与本地草稿用）
func NewTempID() string {
	return uuid.NewString()
}
