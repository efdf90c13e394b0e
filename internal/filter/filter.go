// Package filter selects programs from a catalog snapshot.
//
// Every field of Params is an optional predicate; set fields are ANDed and
// unset fields are ignored, so the zero Params matches every program.
package filter

import (
	"strings"

	"github.com/storbeck/chaosdl/internal/catalog"
)

// Params holds the optional predicates.
type Params struct {
	// Platform compares case-insensitively. The empty string selects
	// self-hosted programs only; it is not a wildcard.
	Platform *string
	Bounty   *bool
	// Changed=true selects programs whose subdomain set changed since the
	// previous snapshot, Changed=false those that did not.
	Changed *bool
	Name    *string
}

// String and Bool build Params literals.
func String(s string) *string { return &s }
func Bool(b bool) *bool       { return &b }

// Matches reports whether p satisfies every set predicate.
func Matches(p catalog.Program, params Params) bool {
	if params.Platform != nil {
		want := *params.Platform
		if want == "" {
			if p.Platform != "" {
				return false
			}
		} else if !strings.EqualFold(p.Platform, want) {
			return false
		}
	}
	if params.Bounty != nil && p.Bounty != *params.Bounty {
		return false
	}
	if params.Changed != nil && (p.Change != 0) != *params.Changed {
		return false
	}
	if params.Name != nil && p.Name != *params.Name {
		return false
	}
	return true
}

// Select returns the matching programs in catalog order.
func Select(programs []catalog.Program, params Params) []catalog.Program {
	var out []catalog.Program
	for _, p := range programs {
		if Matches(p, params) {
			out = append(out, p)
		}
	}
	return out
}
