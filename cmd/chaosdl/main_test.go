package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/storbeck/chaosdl/internal/catalog"
)

func serveArchive(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("acme.com.txt")
	w.Write([]byte("a.acme.com\nb.acme.com\n"))
	zw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeIndex(t *testing.T, dir, base string) string {
	t.Helper()
	programs := []catalog.Program{
		{Name: "Acme", URL: base + "/acme.zip", Platform: "hackerone", Bounty: true, Change: 1, Count: 2, LastUpdated: "2024-05-01T00:00:00Z"},
		{Name: "Bolt", URL: base + "/bolt.zip", Platform: "bugcrowd", Count: 9, LastUpdated: "2024-05-01T00:00:00Z"},
	}
	data, err := json.Marshal(programs)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "index.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDownloadAndExport(t *testing.T) {
	srv := serveArchive(t)
	dir := t.TempDir()
	index := writeIndex(t, dir, srv.URL)
	common := []string{"--index", index, "--output", dir, "--db", filepath.Join(dir, "chaos.db"), "--log-level", "error"}

	if _, err := run(t, append([]string{"download", "bounty-platform", "--platform", "HackerOne", "--no-progress"}, common...)...); err != nil {
		t.Fatalf("download: %v", err)
	}
	fresh, err := os.ReadFile(filepath.Join(dir, "new_offer_bounty_and_hackerone.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(fresh) != "a.acme.com\nb.acme.com\n" {
		t.Errorf("new file: %q", fresh)
	}

	if _, err := run(t, append([]string{"export", "Acme"}, common...)...); err != nil {
		t.Fatalf("export: %v", err)
	}
	exported, err := os.ReadFile(filepath.Join(dir, "Acme_exported.txt"))
	if err != nil || string(exported) != "a.acme.com\nb.acme.com\n" {
		t.Errorf("exported: %q, %v", exported, err)
	}
}

func TestDownload_BadArguments(t *testing.T) {
	dir := t.TempDir()
	common := []string{"--index", filepath.Join(dir, "unused.json"), "--db", filepath.Join(dir, "chaos.db")}
	tests := [][]string{
		{"download", "platform"},
		{"download", "nonsense"},
		{"download", "program"},
		{"download", "all", "--probe", "nmap"},
		{"download", "all", "--db-driver", "postgres"},
	}
	for _, args := range tests {
		if _, err := run(t, append(args, common...)...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestInfoAndList(t *testing.T) {
	dir := t.TempDir()
	index := writeIndex(t, dir, "https://example.invalid")

	out, err := run(t, "info", "--index", index)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "hackerone programs") || !strings.Contains(out, "2024-05-01") {
		t.Errorf("info output:\n%s", out)
	}

	out, err = run(t, "list", "--index", index, "--bounty=false")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "Bolt" {
		t.Errorf("list output: %q", out)
	}
}

func TestCatalogUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := run(t, "info", "--index", srv.URL); err == nil {
		t.Error("expected catalog error")
	}
}
