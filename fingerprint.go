package victims

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint is the hex-encoded content digest of an artifact.
//
// Fingerprints are the primary key of the vulnerability corpus. They are
// always lower case so that string comparison is sufficient.
type Fingerprint string

// NewFingerprint encodes a raw checksum.
func NewFingerprint(sum []byte) Fingerprint {
	return Fingerprint(hex.EncodeToString(sum))
}

// ParseFingerprint validates and normalizes a hex digest.
func ParseFingerprint(s string) (Fingerprint, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s)%2 != 0 {
		return "", fmt.Errorf("invalid fingerprint %q: bad length", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(s), nil
}

// Checksum returns the decoded digest, or nil if the Fingerprint is malformed.
func (f Fingerprint) Checksum() []byte {
	b, err := hex.DecodeString(string(f))
	if err != nil {
		return nil
	}
	return b
}

func (f Fingerprint) String() string { return string(f) }

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(t []byte) error {
	p, err := ParseFingerprint(string(t))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// Scan implements sql.Scanner.
func (f *Fingerprint) Scan(i any) error {
	switch v := i.(type) {
	case string:
		return f.UnmarshalText([]byte(v))
	case []byte:
		return f.UnmarshalText(v)
	default:
		return fmt.Errorf("invalid fingerprint type %T", i)
	}
}

// Value implements driver.Valuer.
func (f Fingerprint) Value() (driver.Value, error) {
	return string(f), nil
}
