// Admitters are packages which impliment the consequences of granted or
// rejected authorization attempts at a charge point, such as; releasing the
// connector latch, blinking an LED, or logging a message.
package admitter

import (
	"context"
	"errors"
)

type contextKey string

const (
	// Type is the context key used to store the kind of guard calling the
	// Admitter. The id tag, charge box and connector are stored with the
	// authtag context keys.
	Type contextKey = "type"
)

var (
	// AccessDenied is the reason error used if the tag was not accepted
	AccessDenied = errors.New("access denied")
)

// Admitter is the interface for consequences of authorization attempts, it
// may be one output such as a latch or a mux of many; such as an LED and a
// latch.
type Admitter interface {
	// Interrogating is called once after an authorization attempt is started.
	// Implimentations should return immediately. The message is a user
	// presentable message. The context will contain the id tag and will be
	// cancelled as soon as the authorization attempt finishes, regardless of
	// the result.
	Interrogating(ctx context.Context, message string)
	// Deny is called if an authorization attempt resulted in any status other
	// than Accepted or an error occured during authorization. The context will
	// contain the id tag and may already be cancelled. The reason will be
	// AccessDenied or if authorization failed, the actual error.
	Deny(ctx context.Context, message string, reason error) error
	// Allow is called if the tag was accepted and charging may begin. The
	// context will contain the id tag.
	Allow(ctx context.Context, message string) error
}

// Mux is a container for multiple Admitters, each is called sequentially in
// order.
type Mux []Admitter

func (m Mux) Interrogating(ctx context.Context, message string) {
	for _, a := range m {
		a.Interrogating(ctx, message)
	}
}

func (m Mux) Deny(ctx context.Context, message string, reason error) error {
	for _, a := range m {
		if err := a.Deny(ctx, message, reason); err != nil {
			return err
		}
	}
	return nil
}

func (m Mux) Allow(ctx context.Context, message string) error {
	for _, a := range m {
		if err := a.Allow(ctx, message); err != nil {
			return err
		}
	}
	return nil
}
