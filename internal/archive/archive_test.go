package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/storbeck/chaosdl/internal/catalog"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEncodePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://host/Program With Space/list.zip", "https://host/Program%20With%20Space/list.zip"},
		{"https://host/a b/list.zip?q=x y#frag ment", "https://host/a%20b/list.zip?q=x y#frag ment"},
		{"https://host/Café/x.zip", "https://host/Caf%C3%A9/x.zip"},
		{"https://host/already%20encoded.zip", "https://host/already%20encoded.zip"},
		{"https://host/100%/x.zip", "https://host/100%25/x.zip"},
		{"https://host", "https://host"},
		{"https://host?x=1", "https://host?x=1"},
		{"/relative path/x.zip", "/relative%20path/x.zip"},
	}
	for _, tt := range tests {
		if got := EncodePath(tt.in); got != tt.want {
			t.Errorf("EncodePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := EncodePath(tt.want); again != tt.want {
			t.Errorf("EncodePath not idempotent on %q: %q", tt.want, again)
		}
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://chaos-data.projectdiscovery.io/acme.zip", "acme.zip"},
		{"https://host/Program With Space/list.zip?token=abc#x", "list.zip"},
		{"https://host/", "archive.zip"},
		{"https://host", "archive.zip"},
	}
	for _, tt := range tests {
		if got := FileName(tt.in); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFetch(t *testing.T) {
	payload := zipBytes(t, map[string]string{
		"acme.com.txt":     "a.acme.com\nb.acme.com\n",
		"acme-api.com.txt": "api.acme-api.com\n",
	})
	var gotURI, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.RequestURI
		gotUA = r.Header.Get("User-Agent")
		w.Write(payload)
	}))
	defer srv.Close()

	root := filepath.Join(t.TempDir(), "all_programmes")
	f := New(Config{})
	p := catalog.Program{Name: "Acme Corp", URL: srv.URL + "/Acme Corp/acme.zip"}

	dir, err := f.Fetch(context.Background(), p, root)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotURI != "/Acme%20Corp/acme.zip" {
		t.Errorf("request uri: %q", gotURI)
	}
	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Errorf("user agent: %q", gotUA)
	}
	if dir != filepath.Join(root, "Acme Corp") {
		t.Errorf("dir: %q", dir)
	}
	data, err := os.ReadFile(filepath.Join(dir, "acme.com.txt"))
	if err != nil || string(data) != "a.acme.com\nb.acme.com\n" {
		t.Errorf("extracted file: %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "acme.zip")); !os.IsNotExist(err) {
		t.Error("archive should be removed after extraction")
	}

	// A second run overwrites in place.
	if _, err := f.Fetch(context.Background(), p, root); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
}

func TestFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), catalog.Program{Name: "Gone", URL: srv.URL + "/gone.zip"}, t.TempDir())
	var re *RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("want *RetrievalError, got %v", err)
	}
	if re.StatusCode != http.StatusNotFound || re.Program != "Gone" {
		t.Errorf("unexpected error: %+v", re)
	}
}

func TestFetch_Corrupt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip"))
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), catalog.Program{Name: "Broken", URL: srv.URL + "/broken.zip"}, t.TempDir())
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("want *ExtractionError, got %v", err)
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), catalog.Program{Name: "Slow", URL: srv.URL + "/slow.zip"}, t.TempDir())
	var re *RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("want *RetrievalError, got %v", err)
	}
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 64))
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 16})
	_, err := f.Fetch(context.Background(), catalog.Program{Name: "Big", URL: srv.URL + "/big.zip"}, t.TempDir())
	var re *RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("want *RetrievalError, got %v", err)
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	if err := os.WriteFile(src, zipBytes(t, map[string]string{"../escape.txt": "x\n"}), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(src, dest); err == nil {
		t.Fatal("expected traversal error")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("file escaped the destination")
	}
}
