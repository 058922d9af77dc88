package dmac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ardnew/samdma/pkg"
)

// enumEntry names one value of an enumerated register field. A value may
// appear more than once; the first entry is its canonical name and the rest
// are accepted aliases.
type enumEntry[T ~uint8] struct {
	value T
	name  string
}

// enumTable is the declarative mapping between an enumerated register field
// and its text form. Every enumeration in this package derives String,
// MarshalText, UnmarshalText and Valid from one table.
//
// When limit is nonzero the domain is the raw range 0..limit, entries only
// name a few of its values, and numeric text is accepted.
type enumTable[T ~uint8] struct {
	kind    string
	entries []enumEntry[T]
	limit   T
}

func (t *enumTable[T]) lookup(v T) (string, bool) {
	for _, e := range t.entries {
		if e.value == v {
			return e.name, true
		}
	}
	return "", false
}

func (t *enumTable[T]) valid(v T) bool {
	if t.limit != 0 {
		return v <= t.limit
	}
	_, ok := t.lookup(v)
	return ok
}

// values lists the domain in ascending order without aliases.
func (t *enumTable[T]) values() []T {
	var out []T
	if t.limit != 0 {
		for v := 0; v <= int(t.limit); v++ {
			out = append(out, T(v))
		}
		return out
	}
	seen := make(map[T]bool, len(t.entries))
	for _, e := range t.entries {
		if !seen[e.value] {
			seen[e.value] = true
			out = append(out, e.value)
		}
	}
	return out
}

func (t *enumTable[T]) text(v T) string {
	if s, ok := t.lookup(v); ok {
		return s
	}
	if t.limit != 0 && v <= t.limit {
		return fmt.Sprintf("0x%02x", uint8(v))
	}
	return fmt.Sprintf("%s(%d)", t.kind, uint8(v))
}

func (t *enumTable[T]) marshal(v T) ([]byte, error) {
	if !t.valid(v) {
		return nil, fmt.Errorf("%w: %s %d", pkg.ErrInvalidParameter, t.kind, uint8(v))
	}
	return []byte(t.text(v)), nil
}

func (t *enumTable[T]) parse(s string) (T, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, e := range t.entries {
		if e.name == key {
			return e.value, nil
		}
	}
	if t.limit != 0 {
		if n, err := strconv.ParseUint(key, 0, 8); err == nil && T(n) <= t.limit {
			return T(n), nil
		}
	}
	return 0, fmt.Errorf("%w: %s %q", pkg.ErrInvalidParameter, t.kind, s)
}

func (t *enumTable[T]) unmarshal(dst *T, text []byte) error {
	v, err := t.parse(string(text))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// flagBit names one bit of a flag set.
type flagBit[T ~uint8] struct {
	bit  T
	name string
}

// flagTable is the flag-set counterpart of enumTable. Text is the names of
// the set bits joined with "|", or "none".
type flagTable[T ~uint8] struct {
	kind string
	bits []flagBit[T]
}

func (t *flagTable[T]) mask() T {
	var m T
	for _, b := range t.bits {
		m |= b.bit
	}
	return m
}

func (t *flagTable[T]) valid(v T) bool {
	return v&^t.mask() == 0
}

func (t *flagTable[T]) text(v T) string {
	if v == 0 {
		return "none"
	}
	var parts []string
	for _, b := range t.bits {
		if v&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	if rest := v &^ t.mask(); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02x", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

func (t *flagTable[T]) marshal(v T) ([]byte, error) {
	if !t.valid(v) {
		return nil, fmt.Errorf("%w: %s 0x%02x", pkg.ErrInvalidParameter, t.kind, uint8(v))
	}
	return []byte(t.text(v)), nil
}

func (t *flagTable[T]) parse(s string) (T, error) {
	var v T
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	}) {
		key := strings.ToLower(part)
		if key == "none" {
			continue
		}
		found := false
		for _, b := range t.bits {
			if b.name == key {
				v |= b.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %s %q", pkg.ErrInvalidParameter, t.kind, part)
		}
	}
	return v, nil
}

func (t *flagTable[T]) unmarshal(dst *T, text []byte) error {
	v, err := t.parse(string(text))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
