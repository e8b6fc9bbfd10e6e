// Package identity decides which user profile fields a report may show.
package identity

import (
	"fmt"
	"strings"
)

// Allowed lists the profile columns that may be configured as identity fields.
var Allowed = []string{"email", "idnumber", "phone1", "phone2", "department", "institution", "city", "country"}

// pictureFields are always needed to render a user picture.
var pictureFields = []string{"id", "picture", "firstname", "lastname", "imagealt", "email"}

// Validate returns an error for any configured field outside Allowed.
func Validate(fields []string) error {
	for _, f := range fields {
		if !isAllowed(f) {
			return fmt.Errorf("identity field %q is not allowed", f)
		}
	}
	return nil
}

func isAllowed(f string) bool {
	for _, a := range Allowed {
		if a == f {
			return true
		}
	}
	return false
}

// ExtraFields returns the configured identity fields the viewer may see.
// Viewers without the identity permission in the course get none.
func ExtraFields(configured []string, canView bool) []string {
	if !canView {
		return []string{}
	}
	out := make([]string, 0, len(configured))
	seen := map[string]bool{}
	for _, f := range configured {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] || !isAllowed(f) {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// PictureFields returns the alias-qualified projection for rendering a user
// plus the extra columns, without duplicates.
func PictureFields(alias string, extra []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(pictureFields)+len(extra))
	for _, f := range append(append([]string{}, pictureFields...), extra...) {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, alias+"."+f)
	}
	return out
}
