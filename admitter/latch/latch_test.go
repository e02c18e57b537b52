package latch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/somakeit/chargeauth/admitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func TestLatchIneffs(t *testing.T) {
	mockLatch := &testPin{}
	mockLatch.Test(t)
	defer mockLatch.AssertExpectations(t)

	var l admitter.Admitter = New(mockLatch)
	ctx := context.Background()

	l.Interrogating(ctx, "Authorizing tag...")
	assert.NoError(t, l.Deny(ctx, "Blocked", admitter.AccessDenied))
}

func TestLatchAllow(t *testing.T) {
	for name, test := range map[string]struct {
		logic                LogicLevel
		wantOpen, wantClosed gpio.Level
	}{
		"active high": {
			logic:      ActiveHigh,
			wantOpen:   gpio.High,
			wantClosed: gpio.Low,
		},

		"active low": {
			logic:      ActiveLow,
			wantOpen:   gpio.Low,
			wantClosed: gpio.High,
		},
	} {
		t.Run(name, func(t *testing.T) {
			mockLatch := &testPin{}
			mockLatch.Test(t)
			defer mockLatch.AssertExpectations(t)
			mockLatch.On("Out", test.wantOpen).Return(nil).Once()
			mockLatch.On("Out", test.wantClosed).Return(nil).Once()

			l := New(mockLatch)
			l.OpenFor = 50 * time.Millisecond
			l.Logic = test.logic

			start := time.Now()
			require.NoError(t, l.Allow(context.Background(), "Accepted"))
			require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
			require.Equal(t, test.wantClosed, mockLatch.Calls[len(mockLatch.Calls)-1].Arguments.Get(0))
		})
	}
}

func TestLatchAllowExtends(t *testing.T) {
	mockLatch := &testPin{}
	mockLatch.Test(t)
	defer mockLatch.AssertExpectations(t)
	mockLatch.On("Out", gpio.High).Return(nil).Once()
	mockLatch.On("Out", gpio.Low).Return(nil).Once()

	l := New(mockLatch)
	l.OpenFor = 100 * time.Millisecond

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, l.Allow(context.Background(), "Accepted"))
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Allow(context.Background(), "Accepted"))
	wg.Wait()

	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestLatchReleaseFails(t *testing.T) {
	mockLatch := &testPin{}
	mockLatch.Test(t)
	defer mockLatch.AssertExpectations(t)
	mockLatch.On("Out", gpio.High).Return(errors.New("i2c nak")).Once()
	mockLatch.On("Out", gpio.Low).Return(nil).Once()

	l := New(mockLatch)
	err := l.Allow(context.Background(), "Accepted")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to release latch: i2c nak")
}

func TestLatchLockFails(t *testing.T) {
	mockLatch := &testPin{}
	mockLatch.Test(t)
	defer mockLatch.AssertExpectations(t)
	mockLatch.On("Out", gpio.High).Return(nil).Once()
	mockLatch.On("Out", gpio.Low).Return(errors.New("i2c nak")).Once()

	l := New(mockLatch)
	l.OpenFor = time.Millisecond
	err := l.Allow(context.Background(), "Accepted")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to lock latch: i2c nak")
}

type testPin struct {
	mock.Mock
}

func (p *testPin) Out(l gpio.Level) error {
	return p.Called(l).Error(0)
}
