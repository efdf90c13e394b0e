// Package layout names the files and directories a run leaves on disk.
//
// For an operation directory "offer_bounty" under root ".":
//
//	offer_bounty/<program>/        extracted text files per program
//	offer_bounty.txt               cumulative merged corpus (appended)
//	new_offer_bounty.txt           newly seen subdomains (appended)
//	live_domains_offer_bounty_httpx.txt
package layout

import (
	"path/filepath"
	"strings"
)

var escapeName = strings.NewReplacer("%", "%25", "/", "%2F", "\\", "%5C", "\x00", "%00")

// SafeName turns a program or platform name into a single path element.
// Distinct names give distinct elements: separators and '%' are
// percent-escaped, and the names "", "." and ".." get forms no other name
// can produce.
func SafeName(name string) string {
	switch name {
	case "":
		return "%"
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return escapeName.Replace(name)
}

// ProgramDir is the directory holding every extracted file for one program.
func ProgramDir(opDir, program string) string {
	return filepath.Join(opDir, SafeName(program))
}

// MergedFile is the cumulative corpus for an operation directory.
func MergedFile(opDir string) string {
	return filepath.Clean(opDir) + ".txt"
}

// NewFile holds subdomains the ledger had not seen before.
func NewFile(opDir string) string {
	return sibling(opDir, "new_", ".txt")
}

// LiveFile is where a probe tool's output is teed.
func LiveFile(opDir, tool string) string {
	return sibling(opDir, "live_domains_", "_"+tool+".txt")
}

// ExportFile is the export destination for one program.
func ExportFile(outDir, program string) string {
	return filepath.Join(outDir, SafeName(program)+"_exported.txt")
}

func sibling(opDir, prefix, suffix string) string {
	opDir = filepath.Clean(opDir)
	return filepath.Join(filepath.Dir(opDir), prefix+filepath.Base(opDir)+suffix)
}
