package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// wireID 服务端 id 可能是字符串也可能是数字，统一转为字符串
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = wireID(n.String())
	return nil
}

// wireNumber 坐标在线上是 string | number | null | 缺失，解码后只保留 *float64
type wireNumber struct {
	value *float64
}

func (n *wireNumber) UnmarshalJSON(b []byte) error {
	n.value = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var raw string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	} else {
		raw = string(b)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		// 无法解析的坐标视为缺失
		return nil
	}
	n.value = &f
	return nil
}

// Float 规范化后的值，缺失时为 nil
func (n wireNumber) Float() *float64 {
	return n.value
}

// wireInt 容量可能是 "120" 或 120；无法解析、负数或超出 int32 范围时为 0
type wireInt int

func (i *wireInt) UnmarshalJSON(b []byte) error {
	var n wireNumber
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = 0
	if n.value == nil {
		return nil
	}
	f := math.Trunc(*n.value)
	if f < 0 || f > math.MaxInt32 {
		return nil
	}
	*i = wireInt(f)
	return nil
}

// wireStrings 字符串数组；也接受内容为 JSON 数组的字符串
type wireStrings []string

func (s *wireStrings) UnmarshalJSON(b []byte) error {
	*s = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return err
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return nil
		}
		b = []byte(inner)
	}
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("expected a list of strings: %w", err)
	}
	*s = items
	return nil
}

// listShape 列表响应的两种形态
type listShape int

const (
	shapeBare    listShape = iota // [...]
	shapeWrapped                  // {"<key>": [...]} 或 {"data": [...]}
)

// listEnvelope 列表响应的 tagged union，解码前需设置 key
type listEnvelope[W any] struct {
	key   string
	Shape listShape
	Items []W
}

func (e *listEnvelope[W]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformed)
	}
	switch b[0] {
	case '[':
		e.Shape = shapeBare
		return json.Unmarshal(b, &e.Items)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		for _, k := range []string{e.key, "data"} {
			raw, ok := obj[k]
			if !ok {
				continue
			}
			raw = bytes.TrimSpace(raw)
			e.Shape = shapeWrapped
			if string(raw) == "null" {
				e.Items = nil
				return nil
			}
			if len(raw) == 0 || raw[0] != '[' {
				return fmt.Errorf("%w: %q is not a list", ErrMalformed, k)
			}
			return json.Unmarshal(raw, &e.Items)
		}
		return fmt.Errorf("%w: object without %q list", ErrMalformed, e.key)
	default:
		return fmt.Errorf("%w: expected a list or an object wrapping %q", ErrMalformed, e.key)
	}
}

// recordEnvelope 单条记录：裸对象，或包装在 {"<key>": {...}} / {"data": {...}} 中
type recordEnvelope[W any] struct {
	key    string
	Record W
}

func (e *recordEnvelope[W]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return fmt.Errorf("%w: expected an object", ErrMalformed)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if _, ok := obj["id"]; !ok {
		for _, k := range []string{e.key, "data"} {
			raw, ok := obj[k]
			if !ok {
				continue
			}
			raw = bytes.TrimSpace(raw)
			if len(raw) > 0 && raw[0] == '{' {
				return json.Unmarshal(raw, &e.Record)
			}
		}
	}
	return json.Unmarshal(b, &e.Record)
}

// decodeList 解码列表响应
func decodeList[W any](body []byte, key string) ([]W, listShape, error) {
	env := listEnvelope[W]{key: key}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, wrapMalformed(err)
	}
	return env.Items, env.Shape, nil
}

// decodeRecord 解码单条记录响应
func decodeRecord[W any](body []byte, key string) (W, error) {
	env := recordEnvelope[W]{key: key}
	if err := json.Unmarshal(body, &env); err != nil {
		var zero W
		return zero, wrapMalformed(err)
	}
	return env.Record, nil
}

func wrapMalformed(err error) error {
	if errors.Is(err, ErrMalformed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}
