package main

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/ini.v1"
)

// IniCodec reads and writes the INI layout of the victims config file:
// one level of sections holding string values. Keys outside any section
// are top-level.
type iniCodec struct{}

func (iniCodec) Decode(b []byte, v map[string]any) error {
	f, err := ini.Load(b)
	if err != nil {
		return err
	}
	for _, s := range f.Sections() {
		m := v
		if name := strings.ToLower(s.Name()); name != strings.ToLower(ini.DefaultSection) {
			sub, ok := v[name].(map[string]any)
			if !ok {
				sub = make(map[string]any)
				v[name] = sub
			}
			m = sub
		}
		for _, k := range s.Keys() {
			m[strings.ToLower(k.Name())] = k.String()
		}
	}
	return nil
}

func (iniCodec) Encode(v map[string]any) ([]byte, error) {
	f := ini.Empty()
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		switch val := v[k].(type) {
		case map[string]any:
			s := f.Section(k)
			sub := make([]string, 0, len(val))
			for sk := range val {
				sub = append(sub, sk)
			}
			slices.Sort(sub)
			for _, sk := range sub {
				if _, ok := val[sk].(map[string]any); ok {
					return nil, fmt.Errorf("ini: key %s.%s: nested sections not supported", k, sk)
				}
				s.Key(sk).SetValue(fmt.Sprint(val[sk]))
			}
		default:
			f.Section("").Key(k).SetValue(fmt.Sprint(val))
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
