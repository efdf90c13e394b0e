package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/storbeck/chaosdl/internal/filter"
	"github.com/storbeck/chaosdl/internal/layout"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrPlatformRequired = errors.New("operation needs a platform")
	ErrProgramRequired  = errors.New("operation needs a program name")
)

// SelfHosted is the platform value users type for programs without a platform.
const SelfHosted = "self-hosted"

// Operation is a named selection of programs and the directory its results
// are written to.
type Operation struct {
	ID     string
	Params filter.Params
	Dir    string
}

type opDef struct {
	bounty   *bool
	changed  *bool
	platform bool
	dir      string // %s is replaced by the platform token
	describe string
}

var ops = map[string]opDef{
	"all":                    {dir: "all_programmes", describe: "all programs"},
	"bounty":                 {bounty: filter.Bool(true), dir: "offer_bounty", describe: "programs offering a bounty"},
	"no-bounty":              {bounty: filter.Bool(false), dir: "not_offer_bounty", describe: "programs without a bounty"},
	"platform":               {platform: true, dir: "%s", describe: "programs on a platform"},
	"new":                    {changed: filter.Bool(true), dir: "new_subdomains", describe: "programs with new subdomains"},
	"new-bounty":             {changed: filter.Bool(true), bounty: filter.Bool(true), dir: "new_subdomains_and_offer_bounty", describe: "new subdomains, bounty"},
	"new-bounty-platform":    {changed: filter.Bool(true), bounty: filter.Bool(true), platform: true, dir: "new_subdomain_and_offer_bounty_and_%s", describe: "new subdomains, bounty, platform"},
	"new-platform":           {changed: filter.Bool(true), platform: true, dir: "new_subdomain_and_platform_%s", describe: "new subdomains, platform"},
	"new-no-bounty":          {changed: filter.Bool(true), bounty: filter.Bool(false), dir: "new_subdomain_and_not_offer_bounty", describe: "new subdomains, no bounty"},
	"new-no-bounty-platform": {changed: filter.Bool(true), bounty: filter.Bool(false), platform: true, dir: "new_subdomain_and_not_offer_bounty_and_%s", describe: "new subdomains, no bounty, platform"},
	"bounty-platform":        {bounty: filter.Bool(true), platform: true, dir: "offer_bounty_and_%s", describe: "bounty, platform"},
	"no-bounty-platform":     {bounty: filter.Bool(false), platform: true, dir: "not_offer_bounty_and_%s", describe: "no bounty, platform"},
	"program":                {describe: "one program by exact name"},
}

// Operations lists the operation ids with a short description, sorted by id.
func Operations() [][2]string {
	out := make([][2]string, 0, len(ops))
	for id, s := range ops {
		out = append(out, [2]string{id, s.describe})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// NormalizePlatform maps the spellings of "self-hosted" to the empty platform
// and lowercases everything else.
func NormalizePlatform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", SelfHosted, "self_hosted", "self hosted", "selfhosted":
		return ""
	}
	return s
}

// Resolve builds an Operation. platform is consulted only by platform
// operations and nil means it was not supplied; program is used by "program".
func Resolve(id string, platform *string, program string) (Operation, error) {
	def, ok := ops[id]
	if !ok {
		return Operation{}, fmt.Errorf("%w %q", ErrUnknownOperation, id)
	}

	op := Operation{ID: id, Params: filter.Params{Bounty: def.bounty, Changed: def.changed}, Dir: def.dir}

	if id == "program" {
		if program == "" {
			return Operation{}, ErrProgramRequired
		}
		op.Params.Name = filter.String(program)
		op.Dir = layout.SafeName(program)
		return op, nil
	}

	if def.platform {
		if platform == nil {
			return Operation{}, fmt.Errorf("%w: %s", ErrPlatformRequired, id)
		}
		p := NormalizePlatform(*platform)
		op.Params.Platform = filter.String(p)
		token := "self_hosted"
		if p != "" {
			token = layout.SafeName(p)
		}
		op.Dir = strings.ReplaceAll(def.dir, "%s", token)
	}
	return op, nil
}
