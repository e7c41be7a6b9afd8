package gateway

import (
	"context"
	"fmt"

	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// resource 单一资源族的通用 CRUD 实现，W 为线上结构，T 为规范化后的实体
type resource[W any, T domain.Entity] struct {
	client    *Client
	name      string // 日志与错误中使用的资源名，如 "classroom"
	basePath  string // 如 "/api/classrooms"
	listKey   string // 列表包装 key，如 "classrooms"
	recordKey string // 单条包装 key，如 "classroom"
	normalize func(w W, index int) (T, error)
}

func (r *resource[W, T]) itemPath() string {
	return r.basePath + "/{id}"
}

// list GET 列表；任何一条记录规范化失败则整个调用失败
func (r *resource[W, T]) list(ctx context.Context, path string, prepare func(*resty.Request)) ([]T, error) {
	resp, err := r.client.do(ctx, resty.MethodGet, path, prepare)
	if err != nil {
		return nil, err
	}

	raw, shape, err := decodeList[W](resp.Body(), r.listKey)
	if err != nil {
		r.client.logger.Error("Failed to decode list response",
			zap.String("resource", r.name),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	items := make([]T, 0, len(raw))
	for i, w := range raw {
		item, err := r.normalize(w, i)
		if err != nil {
			r.client.logger.Error("Record failed normalization",
				zap.String("resource", r.name),
				zap.Int("index", i),
				zap.Error(err),
			)
			return nil, err
		}
		r.warnIfNotUUID(item.EntityID())
		items = append(items, item)
	}

	r.client.logger.Debug("Fetched list",
		zap.String("resource", r.name),
		zap.Int("count", len(items)),
		zap.Bool("wrapped", shape == shapeWrapped),
	)
	return items, nil
}

// get GET 单条；任何失败都视为不存在
func (r *resource[W, T]) get(ctx context.Context, id string) (*T, bool) {
	if id == "" {
		return nil, false
	}
	r.warnIfNotUUID(id)

	resp, err := r.client.do(ctx, resty.MethodGet, r.itemPath(), func(req *resty.Request) {
		req.SetPathParam("id", id)
	})
	if err != nil {
		r.client.logger.Warn("Record lookup failed, treating as not found",
			zap.String("resource", r.name),
			zap.String("id", id),
			zap.Error(err),
		)
		return nil, false
	}
	item, err := r.decodeOne(resp.Body())
	if err != nil {
		r.client.logger.Warn("Record lookup returned an unusable body, treating as not found",
			zap.String("resource", r.name),
			zap.String("id", id),
			zap.Error(err),
		)
		return nil, false
	}
	return &item, true
}

// submit 以 multipart POST 提交表单（创建或带 _method=PUT 的更新）
func (r *resource[W, T]) submit(ctx context.Context, id string, f *form) (T, error) {
	var zero T
	path := r.basePath
	if id != "" {
		path = r.itemPath()
		f.set(methodOverrideField, "PUT")
	}

	r.client.logger.Debug("Submitting form",
		zap.String("resource", r.name),
		zap.String("id", id),
		zap.Strings("fields", f.keys()),
	)

	resp, err := r.client.do(ctx, resty.MethodPost, path, func(req *resty.Request) {
		if id != "" {
			req.SetPathParam("id", id)
		}
		f.apply(req)
	})
	if err != nil {
		return zero, err
	}
	return r.decodeOne(resp.Body())
}

// sendJSON 以 JSON body 发送（POST 创建或真实的 PUT 更新），响应按单条记录解码
func (r *resource[W, T]) sendJSON(ctx context.Context, method, path string, pathParams map[string]string, body any) (T, error) {
	var zero T
	resp, err := r.client.do(ctx, method, path, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
		if len(pathParams) > 0 {
			req.SetPathParams(pathParams)
		}
	})
	if err != nil {
		return zero, err
	}
	return r.decodeOne(resp.Body())
}

// remove DELETE 单条；缺少 id 时不发请求
func (r *resource[W, T]) remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required for deletion", ErrPrecondition, r.name)
	}
	r.warnIfNotUUID(id)

	_, err := r.client.do(ctx, resty.MethodDelete, r.itemPath(), func(req *resty.Request) {
		req.SetPathParam("id", id)
	})
	if err != nil {
		return err
	}
	r.client.logger.Info("Record deleted", zap.String("resource", r.name), zap.String("id", id))
	return nil
}

func (r *resource[W, T]) decodeOne(body []byte) (T, error) {
	var zero T
	w, err := decodeRecord[W](body, r.recordKey)
	if err != nil {
		return zero, err
	}
	return r.normalize(w, 0)
}

func (r *resource[W, T]) warnIfNotUUID(id string) {
	if !domain.IsValidUUID(id) {
		r.client.logger.Warn("Invalid UUID format for id", zap.String("resource", r.name), zap.String("id", id))
	}
}
