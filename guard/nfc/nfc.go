package nfc

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/somakeit/chargeauth/admitter"
	"github.com/somakeit/chargeauth/authtag"
)

const (
	defaultReadTimeoutMS  = 100
	defaultAuthTimeoutS   = 30
	defaultCancelTimeoutS = 5
	guardType             = "nfc"
)

// UIDReader is any NFC/RFID reader that Guard can poll for tag UIDs
type UIDReader interface {
	ReadUID(timeout time.Duration) (uid []byte, err error)
}

// Guard reads tags presented at one connector of a charge point, every tag is
// authorized as the start of a new transaction.
type Guard struct {
	chargeBox string
	connector int
	reader    UIDReader
	auth      authtag.Authorizer
	gate      admitter.Admitter

	lastTag string

	// ReadTimeout is the time given to read a UID from the UIDReader, the
	// default is 100 milliseconds.
	ReadTimeout time.Duration
	// AuthTimeout id the overall time given for the authorization process, if
	// this time elapses before a decision is made, the tag will be denied. The
	// default is 30 seconds.
	AuthTimeout time.Duration
	// CancelTimeout is the durition that a tag must be absent from the reader
	// before an in-progress auth operation is cancelled.
	CancelTimeout time.Duration
	// UpperHex formats id tags as upper case hex, SteVe matches id tags case
	// sensitively so this must match how tags were registered.
	UpperHex bool
}

// New returs a new Guard, chargeBox is the charge box ID of this charge point
// and connector the connector the reader belongs to, reader is an instance of
// an NFC/RFID reader.
func New(chargeBox string, connector int, reader UIDReader, authority authtag.Authorizer, gate admitter.Admitter) (*Guard, error) {
	if chargeBox == "" {
		return nil, fmt.Errorf("no charge box ID")
	}
	if connector <= 0 {
		return nil, fmt.Errorf("invalid connector ID %d", connector)
	}
	return &Guard{
		chargeBox:     chargeBox,
		connector:     connector,
		reader:        reader,
		auth:          authority,
		gate:          gate,
		ReadTimeout:   defaultReadTimeoutMS * time.Millisecond,
		AuthTimeout:   defaultAuthTimeoutS * time.Second,
		CancelTimeout: defaultCancelTimeoutS * time.Second,
	}, nil
}

// Guard begins reading tags. Any error returned is fatal.
func (g *Guard) Guard() error {
	for {
		if err := g.guard(); err != nil {
			return err
		}
	}
}

// guard is one iteration of the Guard loop
func (g *Guard) guard() error {
	rawUID, err := g.reader.ReadUID(g.ReadTimeout)
	if err != nil {
		// There was no tag, or we couldn't read the tag
		g.lastTag = ""
		return nil
	}

	uid := g.format(rawUID)
	if uid == g.lastTag {
		return nil
	}
	g.lastTag = uid

	ctx := context.Background()
	ctx = context.WithValue(ctx, admitter.Type, guardType)
	ctx, cancel := context.WithTimeout(ctx, g.AuthTimeout)

	req := authtag.Request{
		IDTag:            uid,
		StartTransaction: true,
		ChargeBoxID:      &g.chargeBox,
		ConnectorID:      &g.connector,
	}
	// the admitters log before the engine has added these
	ctx = context.WithValue(ctx, authtag.IDTag, uid)
	ctx = context.WithValue(ctx, authtag.ChargeBox, g.chargeBox)
	ctx = context.WithValue(ctx, authtag.Connector, g.connector)

	g.gate.Interrogating(ctx, "Authorizing tag...")

	// If the driver pulls their tag off the reader; cancel the context
	bgScan := make(chan struct{})
	defer func() { <-bgScan }()
	defer cancel()
	go func() {
		defer close(bgScan)

		lastSeen := time.Now()

		for {
			if ctx.Err() != nil {
				break
			}
			rawUID, err := g.reader.ReadUID(g.ReadTimeout)
			if err != nil || uid != g.format(rawUID) {
				// Either the tag is gone or there was a read error, only
				// cancel if this continues to be the case for a short time
				if !(time.Since(lastSeen) > g.CancelTimeout) {
					continue
				}
				cancel()
				return
			}
			lastSeen = time.Now()
		}
	}()

	out, err := g.auth.Authorize(ctx, req)
	if err != nil {
		if err := g.gate.Deny(ctx, "Error", err); err != nil {
			return fmt.Errorf("failed to deny access: %w", err)
		}
		return nil
	}
	if !out.Accepted() {
		if err := g.gate.Deny(ctx, out.Status.String(), admitter.AccessDenied); err != nil {
			return fmt.Errorf("failed to deny access: %w", err)
		}
		return nil
	}

	if err := g.gate.Allow(ctx, out.Status.String()); err != nil {
		return fmt.Errorf("failed to allow access: %w", err)
	}

	return nil
}

func (g *Guard) format(uid []byte) string {
	s := hex.EncodeToString(uid)
	if g.UpperHex {
		return strings.ToUpper(s)
	}
	return s
}
