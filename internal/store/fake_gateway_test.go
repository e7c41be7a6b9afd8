package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Babylonias/adminnexus-portal/internal/domain"
	"github.com/Babylonias/adminnexus-portal/internal/gateway"

	"github.com/stretchr/testify/mock"
)

// fakeGateway 内存中的“服务端”，用于单元测试
type fakeGateway struct {
	mu      sync.Mutex
	records []domain.Classroom
	nextIDs []string

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// 非 nil 时 List/Create 会先发出 started 信号，再等待 release
	listStarted   chan struct{}
	listRelease   chan struct{}
	createStarted chan struct{}
	createRelease chan struct{}

	listCalls   int
	deleteCalls int
}

func newFakeGateway(records ...domain.Classroom) *fakeGateway {
	return &fakeGateway{records: records}
}

func (f *fakeGateway) List(ctx context.Context) ([]domain.Classroom, error) {
	f.mu.Lock()
	f.listCalls++
	started, release := f.listStarted, f.listRelease
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Classroom, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeGateway) Get(ctx context.Context, id string) (*domain.Classroom, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			r := r
			return &r, true
		}
	}
	return nil, false
}

func (f *fakeGateway) Create(ctx context.Context, p domain.ClassroomPayload) (domain.Classroom, error) {
	f.mu.Lock()
	started, release := f.createStarted, f.createRelease
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Classroom{}, f.createErr
	}
	id := fmt.Sprintf("generated-%d", len(f.records)+1)
	if len(f.nextIDs) > 0 {
		id, f.nextIDs = f.nextIDs[0], f.nextIDs[1:]
	}
	c := domain.Classroom{
		ID:        id,
		Name:      p.Name,
		Slug:      p.Slug,
		Capacity:  p.Capacity,
		Status:    p.Status,
		Equipment: []string{},
		Annexes:   []string{},
	}
	f.records = append(f.records, c)
	return c, nil
}

func (f *fakeGateway) Update(ctx context.Context, id string, p domain.ClassroomPayload) (domain.Classroom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Classroom{}, f.updateErr
	}
	for i, r := range f.records {
		if r.ID == id {
			r.Name = p.Name
			r.Status = p.Status
			r.Capacity = p.Capacity
			f.records[i] = r
			return r, nil
		}
	}
	return domain.Classroom{}, &gateway.StatusError{Method: "POST", Path: "/api/classrooms/" + id, Code: 404}
}

func (f *fakeGateway) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i:i], f.records[i+1:]...)
			return nil
		}
	}
	return &gateway.StatusError{Method: "DELETE", Path: "/api/classrooms/" + id, Code: 404}
}

func (f *fakeGateway) set(fn func(f *fakeGateway)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGateway) counts() (list, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.deleteCalls
}

// mockNotifier 记录提示调用
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(severity domain.Severity, title, message string) {
	m.Called(severity, title, message)
}
