// Package authtag decides whether an id tag presented at a charge point may
// start or continue a charging transaction.
package authtag

import (
	"context"
	"errors"
	"time"
)

type contextKey string

const (
	// ChargeBox is the context key holding the charge box ID of the request,
	// if one was given.
	ChargeBox contextKey = "chargebox"
	// Connector is the context key holding the connector ID of the request, if
	// one was given.
	Connector contextKey = "connector"
	// IDTag is the context key holding the id tag being authorized.
	IDTag contextKey = "idtag"
	// Decision is the context key holding a unique ID for one authorization
	// decision, it correlates the log lines of that decision.
	Decision contextKey = "decision"
)

var (
	// ErrUnavailable wraps every error from a TagLookup or Settings. It means
	// no decision could be made, it never means the tag was denied.
	ErrUnavailable = errors.New("authorization backend unavailable")
)

// Record is a snapshot of a tag and its activity. It is never modified during
// a decision.
type Record struct {
	IDTag string
	// ParentIDTag groups tags, it is copied into every outcome for the tag.
	ParentIDTag *string
	// ExpiryDate is nil if no expiry is recorded.
	ExpiryDate    *time.Time
	InTransaction bool
	Blocked       bool
	// ReachedLimit is set when the tag already holds as many active
	// transactions as it is allowed. The TagLookup owns the counting rule.
	ReachedLimit bool
}

// Outcome is the IdTagInfo returned to a charge point.
type Outcome struct {
	Status      Status     `json:"status"`
	ParentIDTag *string    `json:"parentIdTag,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

// Accepted reports whether the outcome allows charging.
func (o Outcome) Accepted() bool {
	return o.Status == Accepted
}

// Request is one authorization request from a charge point.
type Request struct {
	IDTag string
	// StartTransaction is true when the request is for a new charging session,
	// only then is the concurrent transaction limit enforced.
	StartTransaction bool
	// ChargeBoxID and ConnectorID are optional and only used for logging.
	ChargeBoxID *string
	ConnectorID *int
}

// TagLookup finds the current activity record of a tag. found is false if
// the tag does not exist, err is only for failures of the lookup itself.
type TagLookup interface {
	FindTag(ctx context.Context, idTag string) (rec Record, found bool, err error)
}

// Settings provides the number of hours after which an outcome for a tag
// without an explicit expiry should expire. 0 disables the default expiry.
type Settings interface {
	HoursToExpire(ctx context.Context) (int, error)
}

// Authorizer is anything that can turn a Request into an Outcome. An error
// means no decision could be made.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (Outcome, error)
}

// Logger can be used to interface any logger to this package, by default
// it discards all logs.
var Logger ContextLogger = logDiscarder{}

// ContextLogger is the logger needed by authtag
type ContextLogger interface {
	Error(ctx context.Context, args ...interface{})
	Warn(ctx context.Context, args ...interface{})
	Debug(ctx context.Context, args ...interface{})
}

type logDiscarder struct{}

func (logDiscarder) Error(context.Context, ...interface{}) {}
func (logDiscarder) Warn(context.Context, ...interface{})  {}
func (logDiscarder) Debug(context.Context, ...interface{}) {}
