package mocks

import (
	"context"

	"newsroom-server/internal/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockObjectStore is a mock type for interfaces.ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

var _ interfaces.ObjectStore = (*MockObjectStore)(nil)

func (m *MockObjectStore) List(ctx context.Context, prefix string) ([]interfaces.ObjectInfo, error) {
	ret := m.Called(ctx, prefix)
	var objects []interfaces.ObjectInfo
	if ret.Get(0) != nil {
		objects = ret.Get(0).([]interfaces.ObjectInfo)
	}
	return objects, ret.Error(1)
}

func (m *MockObjectStore) Upload(ctx context.Context, path string, data []byte, contentType string, upsert bool) error {
	ret := m.Called(ctx, path, data, contentType, upsert)
	return ret.Error(0)
}

func (m *MockObjectStore) PublicURL(path string) string {
	ret := m.Called(path)
	return ret.String(0)
}

func (m *MockObjectStore) Download(ctx context.Context, url string) ([]byte, string, error) {
	ret := m.Called(ctx, url)
	var data []byte
	if ret.Get(0) != nil {
		data = ret.Get(0).([]byte)
	}
	return data, ret.String(1), ret.Error(2)
}

// NewMockObjectStore creates the mock and registers the test cleanup
// assertions.
func NewMockObjectStore(t interface {
	mock.TestingT
	Helper()
}) *MockObjectStore {
	m := &MockObjectStore{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// MockURLCache is a mock type for interfaces.URLCache.
type MockURLCache struct {
	mock.Mock
}

var _ interfaces.URLCache = (*MockURLCache)(nil)

func (m *MockURLCache) Get(ctx context.Context, key string) (string, bool) {
	ret := m.Called(ctx, key)
	return ret.String(0), ret.Bool(1)
}

func (m *MockURLCache) Set(ctx context.Context, key, url string) {
	m.Called(ctx, key, url)
}

func (m *MockURLCache) Delete(ctx context.Context, key string) {
	m.Called(ctx, key)
}

// NewMockURLCache creates the mock and registers the test cleanup
// assertions.
func NewMockURLCache(t interface {
	mock.TestingT
	Helper()
}) *MockURLCache {
	m := &MockURLCache{}
	m.Mock.Test(t)
	t.Helper()
	return m
}
