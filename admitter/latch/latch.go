// latch is an Admitter for the cable latch of a charge point connector. The
// latch is released when a tag is accepted so the cable can be plugged in.
package latch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/somakeit/chargeauth/admitter"
	"periph.io/x/conn/v3/gpio"
)

const (
	defaultOpenTimeS = 30
)

// Pin is a GPIO pin attached to the latch actuator
type Pin interface {
	Out(gpio.Level) error
}

// LogicLevel is used to indicate the intent of the Pin, true is active
type LogicLevel map[bool]gpio.Level

var (
	ActiveHigh = LogicLevel{true: gpio.High, false: gpio.Low}
	ActiveLow  = LogicLevel{true: gpio.Low, false: gpio.High}
)

var _ admitter.Admitter = &Latch{}

type Latch struct {
	// OpenFor is how long the latch stays released, default is 30 seconds.
	OpenFor time.Duration
	// Logic is either ActiveHigh or ActiveLow, active being released. The
	// default is ActiveHigh.
	Logic LogicLevel

	mux   sync.Mutex
	pin   Pin
	until time.Time
}

func New(latch Pin) *Latch {
	return &Latch{
		OpenFor: defaultOpenTimeS * time.Second,
		pin:     latch,
		Logic:   ActiveHigh,
	}
}

// Interrogating has no effect on a latch
func (l *Latch) Interrogating(context.Context, string) {}

// Deny has no effect on a latch
func (l *Latch) Deny(context.Context, string, error) error { return nil }

// Allow releases the latch for OpenFor and returns once it is locked again. An
// Allow while the latch is already released extends the time and returns
// immediately.
func (l *Latch) Allow(ctx context.Context, msg string) error {
	l.mux.Lock()
	released := time.Now().Before(l.until)
	l.until = time.Now().Add(l.OpenFor)
	if released {
		l.mux.Unlock()
		return nil
	}
	err := l.pin.Out(l.Logic[true])
	l.mux.Unlock()
	if err != nil {
		// Try to lock the latch even though I/O apparently failed
		errL := l.lock()
		return fmt.Errorf("failed to release latch: %w (safety lock: %v)", err, errL)
	}

	for {
		l.mux.Lock()
		remaining := time.Until(l.until)
		if remaining <= 0 {
			err := l.pin.Out(l.Logic[false])
			l.mux.Unlock()
			if err != nil {
				return fmt.Errorf("failed to lock latch: %w", err)
			}
			return nil
		}
		l.mux.Unlock()
		time.Sleep(remaining)
	}
}

func (l *Latch) lock() error {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.until = time.Time{}
	return l.pin.Out(l.Logic[false])
}
