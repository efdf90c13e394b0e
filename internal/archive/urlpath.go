package archive

import (
	"path"
	"strings"
)

// EncodePath percent-encodes the path component of raw and leaves the scheme,
// host, query and fragment as they are. Existing %XX escapes in the path are
// kept, so encoding twice is a no-op.
func EncodePath(raw string) string {
	prefix, p, suffix := splitPath(raw)
	return prefix + escapePath(p) + suffix
}

// FileName is the final segment of the URL path.
func FileName(raw string) string {
	_, p, _ := splitPath(raw)
	name := path.Base(p)
	if name == "/" || name == "." || name == "" {
		return "archive.zip"
	}
	return name
}

// splitPath cuts raw into scheme+authority, path, and query+fragment.
func splitPath(raw string) (prefix, p, suffix string) {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		authority := rest[i+3:]
		end := strings.IndexAny(authority, "/?#")
		if end < 0 {
			return raw, "", ""
		}
		prefix = rest[:i+3] + authority[:end]
		rest = authority[end:]
	}
	if end := strings.IndexAny(rest, "?#"); end >= 0 {
		return prefix, rest[:end], rest[end:]
	}
	return prefix, rest, ""
}

const upperhex = "0123456789ABCDEF"

func escapePath(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case unreserved(c) || c == '/':
			b.WriteByte(c)
		case c == '%' && i+2 < len(p) && ishex(p[i+1]) && ishex(p[i+2]):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

func unreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func ishex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
