package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

const sampleIndex = `[
 {"name":"Acme","URL":"https://chaos-data.projectdiscovery.io/acme.zip","platform":"hackerone","bounty":true,"change":3,"is_new":false,"count":120,"last_updated":"2024-05-01T10:00:00Z"},
 {"name":"Bolt","URL":"https://chaos-data.projectdiscovery.io/bolt.zip","platform":"bugcrowd","bounty":false,"change":0,"is_new":true,"count":40,"last_updated":"2024-05-01T10:00:00Z","swag":true},
 {"name":"Crane","URL":"https://chaos-data.projectdiscovery.io/crane.zip","platform":"","bounty":true,"change":0,"is_new":false,"count":7,"last_updated":"2024-05-01T10:00:00Z","swag":false}
]`

func TestFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(sampleIndex))
	}))
	defer srv.Close()

	programs, err := Fetch(context.Background(), Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(programs) != 3 {
		t.Fatalf("got %d programs, want 3", len(programs))
	}
	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Errorf("user agent not set: %q", gotUA)
	}
	p := programs[0]
	if p.Name != "Acme" || p.Platform != "hackerone" || !p.Bounty || p.Change != 3 || p.Count != 120 {
		t.Errorf("unexpected first program: %+v", p)
	}
	if !programs[2].SelfHosted() {
		t.Error("Crane should be self-hosted")
	}
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := Fetch(context.Background(), Config{URL: srv.URL})
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("want *FetchError, got %v", err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleIndex))
	}))
	defer srv.Close()

	programs, err := Open(context.Background(), srv.URL, Config{})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "index.json")
	if err := Save(path, programs); err != nil {
		t.Fatal(err)
	}
	loaded, err := Open(context.Background(), path, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != len(programs) {
		t.Fatalf("round trip: %d programs, want %d", len(loaded), len(programs))
	}
	if got, want := loaded[1], programs[1]; got.Name != want.Name || got.URL != want.URL || got.Count != want.Count || got.IsNew != want.IsNew {
		t.Errorf("round trip mismatch: %+v", got)
	}
	for i := range programs {
		if (loaded[i].Swag == nil) != (programs[i].Swag == nil) {
			t.Errorf("%s: swag key presence lost", programs[i].Name)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleIndex))
	}))
	defer srv.Close()
	programs, err := Fetch(context.Background(), Config{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	s := Summarize(programs)
	if s.LastUpdated != "2024-05-01" {
		t.Errorf("last updated: %q", s.LastUpdated)
	}
	if s.Programs != 3 || s.Subdomains != 167 || s.Changed != 1 || s.New != 1 {
		t.Errorf("counts: %+v", s)
	}
	if s.SelfHosted != 1 || s.Bounty != 2 || s.NoBounty != 1 || s.Swag != 2 {
		t.Errorf("counts: %+v", s)
	}
	if s.ByPlatform["hackerone"] != 1 || s.ByPlatform["bugcrowd"] != 1 {
		t.Errorf("platforms: %v", s.ByPlatform)
	}

	got := Platforms(programs)
	if len(got) != 2 || got[0] != "bugcrowd" || got[1] != "hackerone" {
		t.Errorf("Platforms = %v", got)
	}

	if p, ok := Lookup(programs, "Bolt"); !ok || p.Count != 40 {
		t.Errorf("Lookup(Bolt) = %+v, %v", p, ok)
	}
	if _, ok := Lookup(programs, "bolt"); ok {
		t.Error("Lookup must be exact")
	}
}
