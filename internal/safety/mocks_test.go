package safety

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"shortly/internal/entities"
)

type MockThreatListChecker struct {
	mock.Mock
}

func (m *MockThreatListChecker) Check(ctx context.Context, url string) (*entities.ThreatType, error) {
	args := m.Called(ctx, url)
	threat, _ := args.Get(0).(*entities.ThreatType)
	return threat, args.Error(1)
}

type MockContentClassifier struct {
	mock.Mock
}

func (m *MockContentClassifier) Classify(ctx context.Context, url string, hint *entities.ThreatType) (*Classification, error) {
	args := m.Called(ctx, url, hint)
	c, _ := args.Get(0).(*Classification)
	return c, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func threatPtr(t entities.ThreatType) *entities.ThreatType {
	return &t
}
