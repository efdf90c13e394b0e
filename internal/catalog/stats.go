package catalog

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Stats summarises an index snapshot.
type Stats struct {
	LastUpdated string
	Subdomains  int
	Programs    int
	Changed     int
	New         int
	SelfHosted  int
	Bounty      int
	NoBounty    int
	Swag        int // programs whose record carries a swag key
	// ByPlatform counts programs per lowercased platform name; self-hosted
	// programs are counted in SelfHosted only.
	ByPlatform map[string]int
}

// Summarize computes Stats for programs.
func Summarize(programs []Program) Stats {
	s := Stats{Programs: len(programs), ByPlatform: make(map[string]int)}
	if len(programs) > 0 {
		s.LastUpdated = day(programs[0].LastUpdated)
	}
	for _, p := range programs {
		s.Subdomains += p.Count
		if p.Change != 0 {
			s.Changed++
		}
		if p.IsNew {
			s.New++
		}
		if p.Bounty {
			s.Bounty++
		} else {
			s.NoBounty++
		}
		if p.Swag != nil {
			s.Swag++
		}
		if p.SelfHosted() {
			s.SelfHosted++
			continue
		}
		s.ByPlatform[strings.ToLower(p.Platform)]++
	}
	return s
}

// Platforms lists the distinct lowercased platform names, sorted.
func Platforms(programs []Program) []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, p := range programs {
		if !p.SelfHosted() {
			set.Add(strings.ToLower(p.Platform))
		}
	}
	out := set.ToSlice()
	sort.Strings(out)
	return out
}

func day(ts string) string {
	if len(ts) > 10 {
		return ts[:10]
	}
	return ts
}
