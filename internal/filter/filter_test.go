package filter

import (
	"testing"

	"github.com/storbeck/chaosdl/internal/catalog"
)

var programs = []catalog.Program{
	{Name: "Acme", Platform: "hackerone", Bounty: true, Change: 2},
	{Name: "Bolt", Platform: "bugcrowd", Bounty: false},
	{Name: "Crane", Platform: "", Bounty: true},
}

func names(ps []catalog.Program) []string {
	var out []string
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func TestEmptyParamsMatchesAll(t *testing.T) {
	for _, p := range programs {
		if !Matches(p, Params{}) {
			t.Errorf("%s should match empty params", p.Name)
		}
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   []string
	}{
		{"bounty", Params{Bounty: Bool(true)}, []string{"Acme", "Crane"}},
		{"no bounty", Params{Bounty: Bool(false)}, []string{"Bolt"}},
		{"platform case-insensitive", Params{Platform: String("HackerOne")}, []string{"Acme"}},
		{"self-hosted", Params{Platform: String("")}, []string{"Crane"}},
		{"changed", Params{Changed: Bool(true)}, []string{"Acme"}},
		{"unchanged", Params{Changed: Bool(false)}, []string{"Bolt", "Crane"}},
		{"changed and bounty and platform", Params{Changed: Bool(true), Bounty: Bool(true), Platform: String("hackerone")}, []string{"Acme"}},
		{"changed and no bounty", Params{Changed: Bool(true), Bounty: Bool(false)}, nil},
		{"name exact", Params{Name: String("Bolt")}, []string{"Bolt"}},
		{"name is case-sensitive", Params{Name: String("bolt")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(Select(programs, tt.params))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSelfHostedIsNotWildcard(t *testing.T) {
	crane := programs[2]
	if !Matches(crane, Params{Platform: String("")}) {
		t.Error("self-hosted program should match empty platform")
	}
	if Matches(crane, Params{Platform: String("hackerone")}) {
		t.Error("self-hosted program must not match hackerone")
	}
}
