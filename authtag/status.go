package authtag

import "fmt"

// Status is the result of an authorization decision. The values are mutually
// exclusive and the set is closed.
type Status int

const (
	// Invalid means the tag is not known.
	Invalid Status = iota
	// Blocked means the tag has been administratively disabled.
	Blocked
	// Expired means the tag's expiry date has passed.
	Expired
	// ConcurrentTx means the tag already holds as many active transactions as
	// it is allowed to.
	ConcurrentTx
	// Accepted means the tag may charge.
	Accepted
)

var statusNames = map[Status]string{
	Invalid:      "Invalid",
	Blocked:      "Blocked",
	Expired:      "Expired",
	ConcurrentTx: "ConcurrentTx",
	Accepted:     "Accepted",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus returns the Status with the given OCPP name, eg: "ConcurrentTx".
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return Invalid, fmt.Errorf("unknown authorization status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("unknown authorization status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
