package refresh

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) RefreshShortageFlags(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestAdd_InvalidSpec(t *testing.T) {
	r := New(slog.Default(), context.Background())

	_, err := r.Add("not a cron spec", func(context.Context) {})
	assert.Error(t, err)
}

func TestScheduleShortageRefresh_Runs(t *testing.T) {
	refresher := new(MockRefresher)
	called := make(chan struct{}, 10)
	refresher.On("RefreshShortageFlags", mock.Anything).
		Return(2, nil).
		Run(func(mock.Arguments) { called <- struct{}{} })

	r := New(slog.Default(), context.Background())
	_, err := r.ScheduleShortageRefresh("* * * * * *", refresher)
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	select {
	case <-called:
	case <-time.After(3 * time.Second):
		t.Fatal("refresh was not triggered")
	}
}

func TestRunOnce_LogsError(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("RefreshShortageFlags", mock.Anything).Return(0, errors.New("db down")).Once()

	assert.NotPanics(t, func() {
		RunOnce(context.Background(), slog.Default(), refresher)
	})
	refresher.AssertExpectations(t)
}
