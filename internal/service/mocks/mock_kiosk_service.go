package mocks

import (
	"context"
	"io"

	"printkiosk/internal/model"
	"printkiosk/internal/storage"
	"github.com/stretchr/testify/mock"
)

type MockKioskService struct {
	mock.Mock
}

func (m *MockKioskService) Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.StoredFile, error) {
	args := m.Called(ctx, r, originalFilename, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredFile), args.Error(1)
}

func (m *MockKioskService) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockKioskService) Open(ctx context.Context, name string) (storage.Object, *model.StoredFile, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(storage.Object), args.Get(1).(*model.StoredFile), args.Error(2)
}

func (m *MockKioskService) Print(ctx context.Context, name string) (*model.PrintResult, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PrintResult), args.Error(1)
}

func (m *MockKioskService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
