// Package log holds the slog plumbing shared by the victims packages.
//
// Callers attach attributes to a [context.Context] with [With] and install a
// handler wrapped by [WrapHandler]; every record logged with that Context
// then carries the attributes.
package log

import (
	"context"
	"log/slog"
	"slices"
)

type ctxkey int

const (
	_ ctxkey = iota

	// AttrsKey retrieves the extra attributes stored by [With] or [WithAttr].
	//
	// The value is a [slog.Value] of kind "Group" if present.
	AttrsKey
)

// With returns a Context with the key-value pairs stored as [slog.Attr] at
// [AttrsKey]. Arguments follow the [slog.Logger.Log] conventions.
func With(ctx context.Context, args ...any) context.Context {
	return WithAttr(ctx, toAttrs(args)...)
}

// WithAttr returns a Context with the attributes stored at [AttrsKey].
//
// Later attributes replace earlier ones with the same key, and empty groups
// are dropped.
func WithAttr(ctx context.Context, attrs ...slog.Attr) context.Context {
	if v, ok := ctx.Value(AttrsKey).(slog.Value); ok {
		attrs = append(v.Group(), attrs...)
	}
	seen := make(map[string]struct{}, len(attrs))
	drop := func(a slog.Attr) bool {
		_, dup := seen[a.Key]
		seen[a.Key] = struct{}{}
		return dup || (a.Value.Kind() == slog.KindGroup && len(a.Value.Group()) == 0)
	}
	slices.Reverse(attrs)
	attrs = slices.DeleteFunc(attrs, drop)
	slices.Reverse(attrs)
	return context.WithValue(ctx, AttrsKey, slog.GroupValue(attrs...))
}

// Attrs reports the attributes stored in the Context, if any.
func Attrs(ctx context.Context) []slog.Attr {
	if v, ok := ctx.Value(AttrsKey).(slog.Value); ok {
		return v.Group()
	}
	return nil
}

// ToAttrs mirrors the argument handling in [log/slog].
func toAttrs(args []any) []slog.Attr {
	const badKey = `!BADKEY`
	var attrs []slog.Attr
	for len(args) > 0 {
		switch x := args[0].(type) {
		case string:
			if len(args) == 1 {
				attrs = append(attrs, slog.String(badKey, x))
				args = nil
				continue
			}
			attrs = append(attrs, slog.Any(x, args[1]))
			args = args[2:]
		case slog.Attr:
			attrs = append(attrs, x)
			args = args[1:]
		default:
			attrs = append(attrs, slog.Any(badKey, x))
			args = args[1:]
		}
	}
	return attrs
}
