package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/somakeit/chargeauth/admitter"
	"github.com/somakeit/chargeauth/authtag"
)

const (
	authTimeout = 30 * time.Second
	guardType   = "console"
	stopCommand = "stop"
)

// Logger can be used to interface any logger to this package, by default
// it discards all logs.
var Logger ContextLogger = logDiscarder{}

// ContextLogger is the logger needed by console
type ContextLogger interface {
	Info(ctx context.Context, args ...interface{})
	Error(ctx context.Context, args ...interface{})
}

type logDiscarder struct{}

func (logDiscarder) Info(context.Context, ...interface{})  {}
func (logDiscarder) Error(context.Context, ...interface{}) {}

// Guard takes id tags typed on a terminal, one per line, for benches without
// a reader. A plain tag is authorized as the start of a transaction, a line
// of "stop <tag>" is authorized as a check during a running transaction.
type Guard struct {
	in        *bufio.Reader
	out       io.Writer
	auth      authtag.Authorizer
	chargeBox string
	connector int
}

// New returns a Guard, in must be a tag source, usually STDIN. Prompts and
// outcomes are written to out.
func New(in io.Reader, out io.Writer, auth authtag.Authorizer, chargeBox string, connector int) *Guard {
	return &Guard{
		in:        bufio.NewReader(in),
		out:       out,
		auth:      auth,
		chargeBox: chargeBox,
		connector: connector,
	}
}

// Guard begins waiting for tags, any errors returned are fatal.
func (g *Guard) Guard() error {
	for {
		if err := g.guard(); err != nil {
			return err
		}
	}
}

func (g *Guard) guard() error {
	ctx := context.Background()
	ctx = context.WithValue(ctx, admitter.Type, guardType)
	ctx = context.WithValue(ctx, authtag.ChargeBox, g.chargeBox)
	ctx = context.WithValue(ctx, authtag.Connector, g.connector)

	fmt.Fprint(g.out, "Enter id tag: ")
	line, err := g.in.ReadString('\n')
	if err != nil {
		Logger.Error(ctx, "Error reading id tag: ", err)
		return fmt.Errorf("failed to read id tag: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	req := authtag.Request{
		IDTag:            line,
		StartTransaction: true,
		ChargeBoxID:      &g.chargeBox,
		ConnectorID:      &g.connector,
	}
	if line == stopCommand || strings.HasPrefix(line, stopCommand+" ") {
		req.IDTag = strings.TrimSpace(strings.TrimPrefix(line, stopCommand))
		req.StartTransaction = false
		if req.IDTag == "" {
			fmt.Fprintln(g.out, "Usage: stop <id tag>")
			return nil
		}
	}

	ctx = context.WithValue(ctx, authtag.IDTag, req.IDTag)
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	out, err := g.auth.Authorize(ctx, req)
	if err != nil {
		Logger.Error(ctx, "Authorization failed: ", err)
		fmt.Fprintln(g.out, "Authorization failed:", err)
		return nil
	}
	Logger.Info(ctx, "Authorized: ", out.Status)
	fmt.Fprintln(g.out, describe(out))
	return nil
}

func describe(out authtag.Outcome) string {
	s := out.Status.String()
	if out.ParentIDTag != nil {
		s += fmt.Sprintf(" parent=%s", *out.ParentIDTag)
	}
	if out.ExpiryDate != nil {
		s += fmt.Sprintf(" expires=%s", out.ExpiryDate.Format(time.RFC3339))
	}
	return s
}
