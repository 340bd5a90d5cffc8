package mocks

import (
	"context"

	"docpipe/internal/parser"

	"github.com/stretchr/testify/mock"
)

type MockParser struct {
	mock.Mock
}

func (m *MockParser) Parse(ctx context.Context, content []byte, filename string, opts parser.Options) (parser.Handle, parser.Metadata, error) {
	args := m.Called(ctx, content, filename, opts)
	return args.Get(0), args.Get(1).(parser.Metadata), args.Error(2)
}

func (m *MockParser) Export(ctx context.Context, h parser.Handle, format parser.Format) (string, error) {
	args := m.Called(ctx, h, format)
	return args.String(0), args.Error(1)
}
