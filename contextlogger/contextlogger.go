package contextlogger

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/somakeit/chargeauth/admitter"
	"github.com/somakeit/chargeauth/authtag"
)

var _ admitter.Admitter = &ContextLogger{}

// ContextLogger is an adapter to logrus for the log calls in this module. It
// also directly impliments the admitter interface.
type ContextLogger struct {
	Logger *logrus.Logger
}

func (c *ContextLogger) Fatal(ctx context.Context, args ...interface{}) {
	c.entry(ctx).Fatal(args...)
}

func (c *ContextLogger) Error(ctx context.Context, args ...interface{}) {
	c.entry(ctx).Error(args...)
}

func (c *ContextLogger) Warn(ctx context.Context, args ...interface{}) {
	c.entry(ctx).Warn(args...)
}

func (c *ContextLogger) Info(ctx context.Context, args ...interface{}) {
	c.entry(ctx).Info(args...)
}

func (c *ContextLogger) Debug(ctx context.Context, args ...interface{}) {
	c.entry(ctx).Debug(args...)
}

func (c *ContextLogger) Interrogating(ctx context.Context, msg string) {
	c.entry(ctx).Info("Interrogating: ", msg)
}

func (c *ContextLogger) Deny(ctx context.Context, msg string, reason error) error {
	c.entry(ctx).Infof("Denied: %s, reason: %s", msg, reason)
	return nil
}

func (c *ContextLogger) Allow(ctx context.Context, msg string) error {
	c.entry(ctx).Info("Allowed: ", msg)
	return nil
}

// entry only carries the fields present on ctx
func (c *ContextLogger) entry(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}
	add := func(name string, v interface{}) {
		if v != nil {
			fields[name] = v
		}
	}
	add(string(authtag.ChargeBox), ctx.Value(authtag.ChargeBox))
	add(string(authtag.Connector), ctx.Value(authtag.Connector))
	add(string(authtag.IDTag), ctx.Value(authtag.IDTag))
	add(string(authtag.Decision), ctx.Value(authtag.Decision))
	add(string(admitter.Type), ctx.Value(admitter.Type))
	return c.Logger.WithContext(ctx).WithFields(fields)
}
