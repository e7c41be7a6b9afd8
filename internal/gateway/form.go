package gateway

import (
	"fmt"
	"strconv"

	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"github.com/go-resty/resty/v2"
)

// methodOverrideField 以 POST 提交 multipart 更新时，后端按该字段路由为 PUT
const methodOverrideField = "_method"

type formField struct {
	key   string
	value string
}

type filePart struct {
	key  string
	file *domain.File
}

// form 扁平 multipart 表单：标量字段、索引化列表字段、二进制文件
type form struct {
	fields []formField
	files  []filePart
}

func (f *form) set(key, value string) {
	f.fields = append(f.fields, formField{key: key, value: value})
}

func (f *form) setIfNotEmpty(key, value string) {
	if value != "" {
		f.set(key, value)
	}
}

// setList 列表字段使用 key[0], key[1] ... 保持顺序
func (f *form) setList(key string, values []string) {
	for i, v := range values {
		f.set(indexedKey(key, i), v)
	}
}

func (f *form) setCoordinate(c *domain.Coordinate) {
	if c == nil {
		return
	}
	f.set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	f.set("lng", strconv.FormatFloat(c.Lng, 'f', -1, 64))
}

// attach 只有真正的文件才作为二进制 part 上传；URL 引用的已有图片不会重复上传
func (f *form) attach(key string, ref *domain.ImageRef) {
	if ref == nil || !ref.IsUpload() {
		return
	}
	f.files = append(f.files, filePart{key: key, file: ref.File})
}

func (f *form) value(key string) (string, bool) {
	for _, fld := range f.fields {
		if fld.key == key {
			return fld.value, true
		}
	}
	return "", false
}

func (f *form) keys() []string {
	keys := make([]string, 0, len(f.fields)+len(f.files))
	for _, fld := range f.fields {
		keys = append(keys, fld.key)
	}
	for _, p := range f.files {
		keys = append(keys, p.key)
	}
	return keys
}

// apply 写入 resty 请求（始终以 multipart 发送）
func (f *form) apply(req *resty.Request) {
	data := make(map[string]string, len(f.fields))
	for _, fld := range f.fields {
		data[fld.key] = fld.value
	}
	req.SetMultipartFormData(data)
	for _, p := range f.files {
		name := p.file.Name
		if name == "" {
			name = p.key
		}
		contentType := p.file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.SetMultipartField(p.key, name, contentType, p.file.Reader)
	}
}

func indexedKey(key string, i int) string {
	return fmt.Sprintf("%s[%d]", key, i)
}
