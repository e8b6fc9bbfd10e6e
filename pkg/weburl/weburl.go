// Package weburl builds site-relative URLs with stable query parameter order.
package weburl

import (
	"net/url"
	"strings"
)

// URL is a path plus ordered query parameters.
type URL struct {
	base   string
	path   string
	keys   []string
	values map[string]string
}

// Param is one query parameter.
type Param struct {
	Key   string
	Value string
}

// New returns a URL for path with params in the given order.
func New(path string, params ...Param) *URL {
	u := &URL{path: path, values: map[string]string{}}
	for _, p := range params {
		u.Set(p.Key, p.Value)
	}
	return u
}

// P is shorthand for a Param.
func P(key, value string) Param { return Param{Key: key, Value: value} }

// WithBase prefixes the URL with a site root such as https://lms.example.com.
func (u *URL) WithBase(base string) *URL {
	u.base = strings.TrimRight(base, "/")
	return u
}

// Set adds or replaces a parameter, keeping the original position on replace.
func (u *URL) Set(key, value string) *URL {
	if _, ok := u.values[key]; !ok {
		u.keys = append(u.keys, key)
	}
	u.values[key] = value
	return u
}

// Clone returns an independent copy.
func (u *URL) Clone() *URL {
	c := &URL{base: u.base, path: u.path, keys: append([]string(nil), u.keys...), values: make(map[string]string, len(u.values))}
	for k, v := range u.values {
		c.values[k] = v
	}
	return c
}

// Param returns a parameter value.
func (u *URL) Param(key string) (string, bool) {
	v, ok := u.values[key]
	return v, ok
}

// String renders the URL with query-escaped parameters.
func (u *URL) String() string {
	var b strings.Builder
	b.WriteString(u.base)
	b.WriteString(u.path)
	for i, k := range u.keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(u.values[k]))
	}
	return b.String()
}
