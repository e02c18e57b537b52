package authtag

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/somakeit/chargeauth/metrics"
)

var _ Authorizer = &Service{}

// Service is the authorization decision engine. It holds no state between
// calls and is safe for concurrent use.
type Service struct {
	tags     TagLookup
	settings Settings

	// Now is the clock sampled once per Authorize call, the default is
	// time.Now.
	Now func() time.Time
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// New returns a Service that reads tag records from tags and the default
// expiry horizon from settings.
func New(tags TagLookup, settings Settings) *Service {
	return &Service{
		tags:     tags,
		settings: settings,
		Now:      time.Now,
	}
}

// Authorize decides req at the current time. Each call gets a decision ID on
// its context for log correlation.
func (s *Service) Authorize(ctx context.Context, req Request) (Outcome, error) {
	ctx = context.WithValue(ctx, Decision, uuid.NewString())
	return s.Decide(ctx, s.Now(), req)
}

// Decide decides req as of the evaluation time now. Every time based check
// and any default expiry use now, the clock is never read again. A non-nil
// error wraps ErrUnavailable and the Outcome must be ignored.
func (s *Service) Decide(ctx context.Context, now time.Time, req Request) (Outcome, error) {
	ctx = withRequest(ctx, req)

	rec, found, err := s.findTag(ctx, req.IDTag)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		Logger.Error(ctx, "Tag ", req.IDTag, " is INVALID (not present in DB)")
		return s.decided(req, Outcome{Status: Invalid}), nil
	}

	expiry, err := s.effectiveExpiry(ctx, now, rec)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		ParentIDTag: rec.ParentIDTag,
		ExpiryDate:  expiry,
	}

	switch {
	case rec.Blocked:
		Logger.Error(ctx, "Tag ", req.IDTag, " is BLOCKED")
		out.Status = Blocked
	case expiry != nil && expiry.Before(now):
		Logger.Error(ctx, "Tag ", req.IDTag, " is EXPIRED")
		out.Status = Expired
	// Only start requests are held to the limit.
	case req.StartTransaction && rec.ReachedLimit:
		Logger.Warn(ctx, "Tag ", req.IDTag, " is ALREADY in another transaction(s)")
		out.Status = ConcurrentTx
	default:
		Logger.Debug(ctx, "Tag ", rec.IDTag, " is ACCEPTED")
		out.Status = Accepted
	}
	return s.decided(req, out), nil
}

// effectiveExpiry is the record's own expiry, or if it has none then now plus
// the configured horizon. It is never written back to the record.
func (s *Service) effectiveExpiry(ctx context.Context, now time.Time, rec Record) (*time.Time, error) {
	if rec.ExpiryDate != nil {
		return rec.ExpiryDate, nil
	}

	hours, err := s.hoursToExpire(ctx)
	if err != nil {
		return nil, err
	}
	if hours == 0 {
		return nil, nil
	}
	expiry := now.Add(time.Duration(hours) * time.Hour)
	return &expiry, nil
}

func (s *Service) findTag(ctx context.Context, idTag string) (Record, bool, error) {
	start := time.Now()
	rec, found, err := s.tags.FindTag(ctx, idTag)
	s.Metrics.ObserveLookup(metrics.SourceTag, start, err)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: failed to find tag: %w", ErrUnavailable, err)
	}
	return rec, found, nil
}

func (s *Service) hoursToExpire(ctx context.Context) (int, error) {
	start := time.Now()
	hours, err := s.settings.HoursToExpire(ctx)
	if err == nil && hours < 0 {
		err = fmt.Errorf("negative hours to expire: %d", hours)
	}
	s.Metrics.ObserveLookup(metrics.SourceSettings, start, err)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read hours to expire: %w", ErrUnavailable, err)
	}
	return hours, nil
}

func (s *Service) decided(req Request, out Outcome) Outcome {
	s.Metrics.IncrementDecision(out.Status.String(), req.StartTransaction)
	return out
}

func withRequest(ctx context.Context, req Request) context.Context {
	ctx = context.WithValue(ctx, IDTag, req.IDTag)
	if req.ChargeBoxID != nil {
		ctx = context.WithValue(ctx, ChargeBox, *req.ChargeBoxID)
	}
	if req.ConnectorID != nil {
		ctx = context.WithValue(ctx, Connector, *req.ConnectorID)
	}
	return ctx
}
