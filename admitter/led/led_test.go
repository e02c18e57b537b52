package led

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/somakeit/chargeauth/admitter"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

// newTestLED returns an LED with no background thread, pokes are buffered so
// the test can drive loop itself.
func newTestLED(pin Pin) *LED {
	return &LED{
		acceptedTime: time.Hour,
		deniedTime:   time.Hour,
		rate: map[int]blink{
			heartbeat:     {time.Millisecond, time.Millisecond},
			interrogating: {time.Millisecond, time.Millisecond},
			accepted:      {time.Millisecond, 0},
			denied:        {0, time.Millisecond},
			fault:         {time.Millisecond, time.Millisecond},
		},
		pin:  pin,
		wake: make(chan struct{}, 100),
	}
}

func TestLEDState(t *testing.T) {
	for name, test := range map[string]struct {
		calls func(l *LED)
		want  int
	}{
		"idle is heartbeat": {
			calls: func(l *LED) {},
			want:  heartbeat,
		},

		"accepted": {
			calls: func(l *LED) {
				require.NoError(t, l.Allow(context.Background(), "Accepted"))
			},
			want: accepted,
		},

		"denied": {
			calls: func(l *LED) {
				require.NoError(t, l.Deny(context.Background(), "Blocked", admitter.AccessDenied))
			},
			want: denied,
		},

		"fault": {
			calls: func(l *LED) {
				require.NoError(t, l.Deny(context.Background(), "Error", errors.New("db down")))
			},
			want: fault,
		},

		"fault shows over denied": {
			calls: func(l *LED) {
				require.NoError(t, l.Deny(context.Background(), "Blocked", admitter.AccessDenied))
				require.NoError(t, l.Deny(context.Background(), "Error", errors.New("db down")))
			},
			want: fault,
		},

		"accepted shows over everything": {
			calls: func(l *LED) {
				require.NoError(t, l.Deny(context.Background(), "Error", errors.New("db down")))
				l.Interrogating(context.Background(), "Authorizing tag...")
				require.NoError(t, l.Allow(context.Background(), "Accepted"))
			},
			want: accepted,
		},

		"interrogating": {
			calls: func(l *LED) {
				l.Interrogating(context.Background(), "Authorizing tag...")
			},
			want: interrogating,
		},
	} {
		t.Run(name, func(t *testing.T) {
			l := newTestLED(&recordingPin{})
			test.calls(l)
			require.Equal(t, test.want, l.state())
		})
	}
}

func TestLEDInterrogatingEndsWithContext(t *testing.T) {
	l := newTestLED(&recordingPin{})
	ctx, cancel := context.WithCancel(context.Background())

	l.Interrogating(ctx, "Authorizing tag...")
	require.Equal(t, interrogating, l.state())

	cancel()
	require.Eventually(t, func() bool {
		return l.state() == heartbeat
	}, time.Second, time.Millisecond)
}

func TestLEDLoop(t *testing.T) {
	for name, test := range map[string]struct {
		calls func(l *LED)
		want  []gpio.Level
	}{
		"heartbeat blinks": {
			calls: func(l *LED) {},
			want:  []gpio.Level{gpio.High, gpio.Low},
		},

		"accepted is solid": {
			calls: func(l *LED) { _ = l.Allow(context.Background(), "Accepted") },
			want:  []gpio.Level{gpio.High},
		},

		"denied is dark": {
			calls: func(l *LED) { _ = l.Deny(context.Background(), "Expired", admitter.AccessDenied) },
			want:  []gpio.Level{gpio.Low},
		},
	} {
		t.Run(name, func(t *testing.T) {
			pin := &recordingPin{}
			l := newTestLED(pin)
			test.calls(l)
			// drain pokes so the pattern runs to completion
			for len(l.wake) > 0 {
				<-l.wake
			}

			l.loop()
			require.Equal(t, test.want, pin.levels())
		})
	}
}

func TestLEDPokeInterruptsPattern(t *testing.T) {
	pin := &recordingPin{}
	l := newTestLED(pin)
	l.rate[heartbeat] = blink{time.Hour, time.Hour}
	l.poke()

	done := make(chan struct{})
	go func() {
		l.loop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop was not interrupted by poke")
	}
	require.Equal(t, []gpio.Level{gpio.High}, pin.levels())
}

func TestLEDIsAdmitter(t *testing.T) {
	var _ admitter.Admitter = &LED{}
}

type recordingPin struct {
	mux sync.Mutex
	out []gpio.Level
}

func (p *recordingPin) Out(level gpio.Level) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.out = append(p.out, level)
	return nil
}

func (p *recordingPin) levels() []gpio.Level {
	p.mux.Lock()
	defer p.mux.Unlock()
	return append([]gpio.Level(nil), p.out...)
}
