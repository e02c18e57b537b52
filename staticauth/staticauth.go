// Package staticauth is a TagLookup and Settings backed by a fixed list of
// tags, usually loaded from a YAML file. It is meant for test benches.
package staticauth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/somakeit/chargeauth/authtag"
	"gopkg.in/yaml.v3"
)

const defaultMaxActiveTransactions = 1

var (
	_ authtag.TagLookup = &Static{}
	_ authtag.Settings  = &Static{}
)

// Tag is one tag in the static list
type Tag struct {
	IDTag         string     `yaml:"id_tag"`
	ParentIDTag   string     `yaml:"parent_id_tag"`
	ExpiryDate    *time.Time `yaml:"expiry_date"`
	Blocked       bool       `yaml:"blocked"`
	InTransaction bool       `yaml:"in_transaction"`
	// ActiveTransactions is the number of transactions the tag holds.
	ActiveTransactions int `yaml:"active_transactions"`
	// MaxActiveTransactions defaults to 1, -1 allows unlimited transactions.
	MaxActiveTransactions *int `yaml:"max_active_transactions"`
}

// Static is a very basic tag store for testing
type Static struct {
	Delay time.Duration `yaml:"-"`
	Hours int           `yaml:"hours_to_expire"`
	Tags  []Tag         `yaml:"tags"`
}

// Load reads a Static from a YAML file.
func Load(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	var s Static
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %w", err)
	}
	if s.Hours < 0 {
		return nil, fmt.Errorf("invalid hours_to_expire: %d", s.Hours)
	}
	seen := map[string]bool{}
	for _, tag := range s.Tags {
		if tag.IDTag == "" {
			return nil, fmt.Errorf("tag with no id_tag")
		}
		if seen[tag.IDTag] {
			return nil, fmt.Errorf("duplicate tag %q", tag.IDTag)
		}
		seen[tag.IDTag] = true
	}
	return &s, nil
}

func (s *Static) FindTag(ctx context.Context, idTag string) (authtag.Record, bool, error) {
	if err := s.wait(ctx); err != nil {
		return authtag.Record{}, false, err
	}
	for _, tag := range s.Tags {
		if tag.IDTag == idTag {
			return tag.record(), true, nil
		}
	}
	return authtag.Record{}, false, nil
}

func (s *Static) HoursToExpire(ctx context.Context) (int, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	return s.Hours, nil
}

func (s *Static) wait(ctx context.Context) error {
	select {
	case <-time.After(s.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t Tag) record() authtag.Record {
	max := defaultMaxActiveTransactions
	if t.MaxActiveTransactions != nil {
		max = *t.MaxActiveTransactions
	}
	rec := authtag.Record{
		IDTag:         t.IDTag,
		InTransaction: t.InTransaction || t.ActiveTransactions > 0,
		Blocked:       t.Blocked || max == 0,
		ReachedLimit:  max >= 0 && t.ActiveTransactions >= max,
	}
	if t.ParentIDTag != "" {
		parent := t.ParentIDTag
		rec.ParentIDTag = &parent
	}
	if t.ExpiryDate != nil {
		expiry := *t.ExpiryDate
		rec.ExpiryDate = &expiry
	}
	return rec
}
