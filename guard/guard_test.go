package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMux(t *testing.T) {
	readerDone := make(chan struct{})
	reader := &mockGuard{}
	reader.Test(t)
	defer reader.AssertExpectations(t)
	reader.On("Guard").Return(errors.New("reader unplugged")).Run(func(mock.Arguments) {
		time.Sleep(100 * time.Millisecond)
		close(readerDone)
	}).Once()
	console := &mockGuard{}
	console.Test(t)
	defer console.AssertExpectations(t)
	console.On("Guard").Return(errors.New("EOF")).Once()

	g := Mux{reader, console}

	require.EqualError(t, g.Guard(), "EOF")

	// the slower guard must not block when it finishes after the first error
	select {
	case <-readerDone:
	case <-time.After(time.Second):
		t.Fatal("reader guard never finished")
	}
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) Guard() error {
	return m.Called().Error(0)
}
