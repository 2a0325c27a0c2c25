package victims

import (
	"encoding/json"
	"slices"
	"strings"
)

// Format is the canonical tag of a recognized container suffix: upper case,
// without the leading dot. For example "JAR" or "TAR.GZ".
//
// Corpus records are indexed by Format so that a fingerprint is only ever
// compared against records of the same kind of artifact.
type Format string

// FormatOf returns the canonical Format for a suffix such as ".jar" or "tar.gz".
func FormatOf(suffix string) Format {
	return Format(strings.ToUpper(strings.TrimPrefix(suffix, ".")))
}

// Suffix returns the lower-case suffix, with a leading dot, that the Format
// was derived from.
func (f Format) Suffix() string {
	return "." + strings.ToLower(string(f))
}

func (f Format) String() string { return string(f) }

// FormatSet is the set of distinct formats observed during a scan.
//
// The zero value is ready to use.
type FormatSet struct {
	m map[Format]struct{}
}

// NewFormatSet returns a FormatSet containing the provided formats.
func NewFormatSet(fs ...Format) FormatSet {
	var s FormatSet
	for _, f := range fs {
		s.Add(f)
	}
	return s
}

// Add inserts the format, normalizing it to canonical case.
func (s *FormatSet) Add(f Format) {
	if f == "" {
		return
	}
	if s.m == nil {
		s.m = make(map[Format]struct{})
	}
	s.m[FormatOf(string(f))] = struct{}{}
}

// Merge adds every member of "o" to the receiver.
func (s *FormatSet) Merge(o FormatSet) {
	for f := range o.m {
		s.Add(f)
	}
}

// Has reports whether the format is a member of the set.
func (s FormatSet) Has(f Format) bool {
	_, ok := s.m[FormatOf(string(f))]
	return ok
}

// Len reports the number of members.
func (s FormatSet) Len() int { return len(s.m) }

// Slice returns the members in sorted order.
func (s FormatSet) Slice() []Format {
	out := make([]Format, 0, len(s.m))
	for f := range s.m {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// MarshalJSON implements json.Marshaler. The set is written as a sorted
// array.
func (s FormatSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *FormatSet) UnmarshalJSON(b []byte) error {
	var fs []Format
	if err := json.Unmarshal(b, &fs); err != nil {
		return err
	}
	*s = NewFormatSet(fs...)
	return nil
}

func (s FormatSet) String() string {
	fs := s.Slice()
	ss := make([]string, len(fs))
	for i, f := range fs {
		ss[i] = string(f)
	}
	return "{" + strings.Join(ss, ", ") + "}"
}
