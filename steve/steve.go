// Package steve reads tag activity and settings from the database of a SteVe
// OCPP central system.
package steve

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/somakeit/chargeauth/authtag"
)

const (
	// DefaultAppID is the key of the single settings row SteVe creates.
	DefaultAppID = "U3RlVmUgdXNlcyBNYXJpYURCIQ=="

	// unlimited is the max active transaction count that allows any number of
	// concurrent transactions
	unlimited = -1
)

var (
	_ authtag.TagLookup = &Client{}
	_ authtag.Settings  = &Client{}
)

// Client provides methods for reading the SteVe database
type Client struct {
	db    *sql.DB
	appID string
}

// NewClient returns a new SteVe database Client. appID is the settings row to
// read, if empty DefaultAppID is used.
func NewClient(db *sql.DB, appID string) (*Client, error) {
	if db == nil {
		return nil, errors.New("no database")
	}
	if appID == "" {
		appID = DefaultAppID
	}
	return &Client{
		db:    db,
		appID: appID,
	}, nil
}

// TagActivity is a row of the ocpp_tag_activity view
type TagActivity struct {
	IDTag       string
	ParentIDTag sql.NullString
	ExpiryDate  sql.NullTime
	// MaxActiveTransactions is -1 for unlimited, 0 means the tag is blocked.
	MaxActiveTransactions int
	ActiveTransactions    int
	InTransaction         bool
	Blocked               bool
}

// ReachedLimit is true if the tag is not allowed any more concurrent
// transactions.
func (a TagActivity) ReachedLimit() bool {
	if a.MaxActiveTransactions <= unlimited {
		return false
	}
	return a.ActiveTransactions >= a.MaxActiveTransactions
}

// Record converts the row into the snapshot used by authtag.
func (a TagActivity) Record() authtag.Record {
	rec := authtag.Record{
		IDTag:         a.IDTag,
		InTransaction: a.InTransaction,
		Blocked:       a.Blocked || a.MaxActiveTransactions == 0,
		ReachedLimit:  a.ReachedLimit(),
	}
	if a.ParentIDTag.Valid {
		parent := a.ParentIDTag.String
		rec.ParentIDTag = &parent
	}
	if a.ExpiryDate.Valid {
		expiry := a.ExpiryDate.Time
		rec.ExpiryDate = &expiry
	}
	return rec
}

// TagActivity returns the activity row for tag, found is false if there is
// no such tag.
func (c *Client) TagActivity(ctx context.Context, tag string) (activity TagActivity, found bool, err error) {
	row := c.db.QueryRowContext(
		ctx,
		`SELECT id_tag, parent_id_tag, expiry_date, max_active_transaction_count,
			active_transaction_count, in_transaction, blocked
		FROM ocpp_tag_activity WHERE id_tag = ?`,
		tag,
	)
	err = row.Scan(
		&activity.IDTag,
		&activity.ParentIDTag,
		&activity.ExpiryDate,
		&activity.MaxActiveTransactions,
		&activity.ActiveTransactions,
		&activity.InTransaction,
		&activity.Blocked,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TagActivity{}, false, nil
	}
	if err != nil {
		return TagActivity{}, false, fmt.Errorf("failed to query tag: %w", err)
	}
	return activity, true, nil
}

// FindTag makes Client an authtag.TagLookup
func (c *Client) FindTag(ctx context.Context, idTag string) (authtag.Record, bool, error) {
	activity, found, err := c.TagActivity(ctx, idTag)
	if err != nil || !found {
		return authtag.Record{}, found, err
	}
	return activity.Record(), true, nil
}

// HoursToExpire makes Client an authtag.Settings, it reads the setting every
// time so that changes made in the SteVe UI apply to the next decision.
func (c *Client) HoursToExpire(ctx context.Context) (int, error) {
	var hours sql.NullInt64
	err := c.db.QueryRowContext(
		ctx,
		"SELECT hours_to_expire FROM settings WHERE app_id = ?",
		c.appID,
	).Scan(&hours)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no settings for app %q", c.appID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query settings: %w", err)
	}
	if !hours.Valid {
		return 0, nil
	}
	if hours.Int64 < 0 {
		return 0, fmt.Errorf("invalid hours to expire: %d", hours.Int64)
	}
	return int(hours.Int64), nil
}
