// Package claims holds the provider-asserted key/value pairs of a login
// attempt and the adapters that build them from the two wire shapes
// (widget redirect query strings and Mini App initData blobs).
package claims

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// HashField is the claim name carrying the provider signature.
const HashField = "hash"

var (
	// ErrMissingHash is returned when the input has no signature field.
	ErrMissingHash = errors.New("missing hash")
	// ErrDuplicateKey is returned when a claim name appears more than once.
	ErrDuplicateKey = errors.New("duplicate claim")
	// ErrEmptyKey is returned for pairs like "=value".
	ErrEmptyKey = errors.New("empty claim name")
)

// Set is an immutable collection of claims, excluding the signature.
// The zero value is an empty set.
type Set struct {
	values map[string]string
}

// New builds a Set from a plain map. The hash field is rejected so a Set can
// never carry its own signature.
func New(values map[string]string) (Set, error) {
	m := make(map[string]string, len(values))
	for k, v := range values {
		if k == "" {
			return Set{}, ErrEmptyKey
		}
		if k == HashField {
			return Set{}, fmt.Errorf("%q is not a claim", HashField)
		}
		m[k] = v
	}
	return Set{values: m}, nil
}

// Get returns the value of a claim.
func (s Set) Get(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Value returns the claim value or "" when absent.
func (s Set) Value(name string) string {
	return s.values[name]
}

// Len reports the number of claims.
func (s Set) Len() int {
	return len(s.values)
}

// Names returns the claim names in canonical (byte-wise) order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Canonical returns the data-check string: "name=value" lines sorted by
// name and joined with '\n', no trailing newline.
func (s Set) Canonical() string {
	var b strings.Builder
	for i, name := range s.Names() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(s.values[name])
	}
	return b.String()
}

// FromQuery adapts widget redirect parameters. Values are taken as-is since
// the transport has already URL-decoded them.
func FromQuery(q url.Values) (Set, string, error) {
	hashes, ok := q[HashField]
	if !ok || len(hashes) == 0 || hashes[0] == "" {
		return Set{}, "", ErrMissingHash
	}
	if len(hashes) > 1 {
		return Set{}, "", fmt.Errorf("%w: %s", ErrDuplicateKey, HashField)
	}

	m := make(map[string]string, len(q))
	for k, vs := range q {
		if k == HashField {
			continue
		}
		if k == "" {
			return Set{}, "", ErrEmptyKey
		}
		if len(vs) > 1 {
			return Set{}, "", fmt.Errorf("%w: %s", ErrDuplicateKey, k)
		}
		v := ""
		if len(vs) == 1 {
			v = vs[0]
		}
		m[k] = v
	}
	return Set{values: m}, hashes[0], nil
}

// ParseInitData adapts the Mini App initData string: '&'-joined key=value
// pairs, each pair percent-decoded ('+' is a space). Empty segments are
// skipped and a pair without '=' yields an empty value.
func ParseInitData(initData string) (Set, string, error) {
	m := make(map[string]string)
	hash := ""
	seenHash := false

	for _, segment := range strings.Split(initData, "&") {
		if segment == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(segment, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return Set{}, "", fmt.Errorf("decoding claim name: %w", err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return Set{}, "", fmt.Errorf("decoding claim %s: %w", key, err)
		}
		if key == "" {
			return Set{}, "", ErrEmptyKey
		}

		if key == HashField {
			if seenHash {
				return Set{}, "", fmt.Errorf("%w: %s", ErrDuplicateKey, HashField)
			}
			seenHash = true
			hash = value
			continue
		}
		if _, dup := m[key]; dup {
			return Set{}, "", fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		m[key] = value
	}

	if hash == "" {
		return Set{}, "", ErrMissingHash
	}
	return Set{values: m}, hash, nil
}
