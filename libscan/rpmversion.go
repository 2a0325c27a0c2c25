package libscan

import (
	"fmt"
	"strings"

	version "github.com/knqyf263/go-rpm-version"
)

// RpmConstraint is a version range over RPM "[epoch:]version[-release]"
// strings: "||" separated alternatives of "," separated comparisons.
type rpmConstraint [][]rpmTerm

type rpmTerm struct {
	op string
	v  version.Version
}

// Operators, longest first so that ">=" isn't read as ">".
var rpmOps = []string{">=", "<=", "!=", "==", ">", "<", "="}

func parseRPMConstraint(s string) (rpmConstraint, error) {
	var c rpmConstraint
	for alt := range strings.SplitSeq(s, "||") {
		var and []rpmTerm
		for term := range strings.SplitSeq(alt, ",") {
			term = strings.TrimSpace(term)
			op := "="
			for _, o := range rpmOps {
				if strings.HasPrefix(term, o) {
					op, term = o, strings.TrimSpace(term[len(o):])
					break
				}
			}
			if term == "" || strings.ContainsAny(term, " \t~^*<>=!") {
				return nil, fmt.Errorf("bad rpm version comparison %q", term)
			}
			and = append(and, rpmTerm{op: op, v: version.NewVersion(term)})
		}
		c = append(c, and)
	}
	return c, nil
}

// Check reports whether the RPM version "v" satisfies the constraint.
func (c rpmConstraint) Check(v string) bool {
	pv := version.NewVersion(v)
	for _, and := range c {
		ok := true
		for _, t := range and {
			if !t.match(pv.Compare(t.v)) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (t rpmTerm) match(cmp int) bool {
	switch t.op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "!=":
		return cmp != 0
	default:
		return cmp == 0
	}
}
