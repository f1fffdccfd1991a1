// Package descriptor parses connection descriptors of the form
// "host=example.com;user=deploy;pw=secret;port=2222".
//
// Keys are case-insensitive and the last occurrence of a key wins. Values may
// be quoted with ' or " to carry ';' or '=' (a doubled quote inside a quoted
// value stands for itself). A missing key is reported as absence, never as an
// error. Tokens that cannot be parsed are skipped unless Strict is given.
package descriptor

import (
	"sort"
	"strings"

	"github.com/TrevorEdris/transfer-utils/pkg/errors"
)

type (
	// Store resolves named connection strings, e.g. from the application
	// configuration.
	Store interface {
		ConnectionString(name string) (string, bool)
	}

	// StoreFunc adapts a function to Store.
	StoreFunc func(name string) (string, bool)

	Descriptor struct {
		values map[string]string
	}

	Option func(*parser)

	parser struct {
		strict bool
	}
)

func (f StoreFunc) ConnectionString(name string) (string, bool) {
	return f(name)
}

// Strict makes malformed tokens fail the parse with
// errors.ErrMalformedDescriptor instead of being skipped.
func Strict() Option {
	return func(p *parser) {
		p.strict = true
	}
}

// WithStrict sets strictness from configuration.
func WithStrict(strict bool) Option {
	return func(p *parser) {
		p.strict = strict
	}
}

// Parse resolves input against store first; when store has no connection
// string of that name, input itself is parsed as the descriptor.
func Parse(input string, store Store, opts ...Option) (Descriptor, error) {
	raw := input
	if store != nil {
		if cs, ok := store.ConnectionString(strings.TrimSpace(input)); ok {
			raw = cs
		}
	}
	return ParseString(raw, opts...)
}

// ParseString parses a literal descriptor string.
func ParseString(raw string, opts ...Option) (Descriptor, error) {
	p := &parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p.parse(raw)
}

func (p *parser) parse(raw string) (Descriptor, error) {
	d := Descriptor{values: make(map[string]string)}
	rest := raw
	for rest != "" {
		key, value, remaining, err := nextPair(rest)
		rest = remaining
		if err != nil {
			if p.strict {
				return Descriptor{}, err
			}
			continue
		}
		if key == "" {
			continue
		}
		d.values[key] = value
	}
	return d, nil
}

// nextPair consumes one "key=value" token from s. An empty key with no error
// means the token was blank.
func nextPair(s string) (key, value, rest string, err error) {
	eq := strings.IndexAny(s, "=;")
	if eq < 0 || s[eq] == ';' {
		token, remaining := cutToken(s)
		if strings.TrimSpace(token) == "" {
			return "", "", remaining, nil
		}
		return "", "", remaining, errors.NewMalformedDescriptorError(token)
	}

	key = strings.ToLower(strings.TrimSpace(s[:eq]))
	afterEq := s[eq+1:]
	if key == "" {
		token, remaining := cutToken(s)
		return "", "", remaining, errors.NewMalformedDescriptorError(token)
	}

	trimmed := strings.TrimLeft(afterEq, " \t\r\n")
	if trimmed != "" && (trimmed[0] == '"' || trimmed[0] == '\'') {
		return readQuoted(key, trimmed)
	}

	value, rest = cutToken(afterEq)
	return key, strings.TrimSpace(value), rest, nil
}

func readQuoted(key, s string) (string, string, string, error) {
	quote := s[0]
	var b strings.Builder
	i := 1
	for {
		if i >= len(s) {
			// Unterminated: drop through the next separator and keep going.
			token, rest := cutToken(s)
			return "", "", rest, errors.NewMalformedDescriptorError(key + "=" + token)
		}
		c := s[i]
		if c == quote {
			if i+1 < len(s) && s[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			break
		}
		b.WriteByte(c)
		i++
	}

	trailing, rest := cutToken(s[i+1:])
	if strings.TrimSpace(trailing) != "" {
		return "", "", rest, errors.NewMalformedDescriptorError(key + "=" + s[:i+1] + trailing)
	}
	return key, b.String(), rest, nil
}

func cutToken(s string) (string, string) {
	token, rest, _ := strings.Cut(s, ";")
	return token, rest
}

// Get returns the value of key. The boolean is false when the key is absent.
func (d Descriptor) Get(key string) (string, bool) {
	v, ok := d.values[strings.ToLower(strings.TrimSpace(key))]
	return v, ok
}

// Value returns the value of key or "" when absent.
func (d Descriptor) Value(key string) string {
	v, _ := d.Get(key)
	return v
}

// Lookup returns the value of the first alias present, in the given order.
func (d Descriptor) Lookup(aliases ...string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := d.Get(alias); ok {
			return v, true
		}
	}
	return "", false
}

func (d Descriptor) Len() int {
	return len(d.values)
}

// Keys returns the lower-cased keys in sorted order.
func (d Descriptor) Keys() []string {
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Redacted renders the descriptor with secrets masked. Keys are sorted.
func (d Descriptor) Redacted() string {
	parts := make([]string, 0, len(d.values))
	for _, k := range d.Keys() {
		v := d.values[k]
		if Password.has(k) {
			v = "****"
		} else if strings.ContainsAny(v, ";='\"") {
			v = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ";")
}
