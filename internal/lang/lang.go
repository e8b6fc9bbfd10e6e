// Package lang serves localized UI strings from embedded YAML packs.
package lang

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the pack every other pack falls back to.
const DefaultLanguage = "en"

// ErrUnknownLanguage is returned by Load for a language with no pack.
var ErrUnknownLanguage = errors.New("unknown language")

//go:embed packs/*.yaml
var packsFS embed.FS

// Strings looks up a localized string by key.
type Strings interface {
	Get(key string) string
}

// Bundle is one language with fallback to the default pack.
type Bundle struct {
	code     string
	strings  map[string]string
	fallback map[string]string
}

func readPack(code string) (map[string]string, error) {
	raw, err := packsFS.ReadFile("packs/" + code + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, code)
	}
	m := map[string]string{}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse pack %s: %w", code, err)
	}
	return m, nil
}

// Load returns the bundle for code.
func Load(code string) (*Bundle, error) {
	if code == "" {
		code = DefaultLanguage
	}
	base, err := readPack(DefaultLanguage)
	if err != nil {
		return nil, err
	}
	if code == DefaultLanguage {
		return &Bundle{code: code, strings: base, fallback: base}, nil
	}
	own, err := readPack(code)
	if err != nil {
		return nil, err
	}
	return &Bundle{code: code, strings: own, fallback: base}, nil
}

// Code returns the bundle's language code.
func (b *Bundle) Code() string { return b.code }

// Get returns the string for key, or [[key]] when no pack defines it.
func (b *Bundle) Get(key string) string {
	if s, ok := b.strings[key]; ok {
		return s
	}
	if s, ok := b.fallback[key]; ok {
		return s
	}
	return "[[" + key + "]]"
}

// Format returns the string for key with {$a} replaced by a.
func (b *Bundle) Format(key, a string) string {
	return strings.ReplaceAll(b.Get(key), "{$a}", a)
}
