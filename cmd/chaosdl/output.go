package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/storbeck/chaosdl/internal/catalog"
	"github.com/storbeck/chaosdl/internal/pipeline"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold)
	failMark = color.New(color.FgRed, color.Bold)
	warnMark = color.New(color.FgYellow, color.Bold)
	infoMark = color.New(color.FgCyan, color.Bold)
)

func okLine(w io.Writer, format string, args ...any) {
	okMark.Fprint(w, "[+] ")
	fmt.Fprintf(w, format+"\n", args...)
}

func failLine(w io.Writer, format string, args ...any) {
	failMark.Fprint(w, "[-] ")
	fmt.Fprintf(w, format+"\n", args...)
}

func warnLine(w io.Writer, format string, args ...any) {
	warnMark.Fprint(w, "[!] ")
	fmt.Fprintf(w, format+"\n", args...)
}

func infoLine(w io.Writer, format string, args ...any) {
	infoMark.Fprint(w, "[*] ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printSummary(w io.Writer, sum *pipeline.Summary) {
	for _, r := range sum.Results {
		if r.OK() {
			okLine(w, "%s done (%d new of %d)", r.Program, r.Merge.New, r.Merge.Unique)
		}
	}
	failed := sum.Failed()
	for _, r := range failed {
		failLine(w, "%s failed at %s: %v", r.Program, r.Stage, r.Err)
	}
	if n := sum.Suppressed(); n > 0 {
		warnLine(w, "%d subdomains could not be written to the ledger", n)
	}
	if len(sum.Results) == 0 {
		warnLine(w, "no program matched %s", sum.Operation.ID)
		return
	}
	infoLine(w, "%d succeeded, %d failed in %s", sum.Succeeded(), len(failed), sum.Elapsed.Round(time.Millisecond))
	infoLine(w, "Merged corpus: %s", sum.MergedFile)
	infoLine(w, "New subdomains (%d): %s", sum.NewSubdomains(), sum.NewFile)
}

func renderProgram(w io.Writer, p catalog.Program) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Info", p.Name})
	table.SetAutoWrapText(false)
	platform := p.Platform
	if platform == "" {
		platform = "self hosted"
	}
	updated := p.LastUpdated
	if len(updated) > 10 {
		updated = updated[:10]
	}
	table.AppendBulk([][]string{
		{"name", p.Name},
		{"program url", p.URL},
		{"total subdomains", strconv.Itoa(p.Count)},
		{"new subdomains", strconv.Itoa(p.Change)},
		{"is new", strconv.FormatBool(p.IsNew)},
		{"platform", platform},
		{"offer reward", strconv.FormatBool(p.Bounty)},
		{"last updated", updated},
	})
	table.Render()
}

func renderStats(w io.Writer, s catalog.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAutoWrapText(false)
	rows := [][]string{
		{"Programs last updated", s.LastUpdated},
		{"Subdomains", strconv.Itoa(s.Subdomains)},
		{"Programs", strconv.Itoa(s.Programs)},
		{"Programs changed", strconv.Itoa(s.Changed)},
		{"New programs", strconv.Itoa(s.New)},
	}
	platforms := make([]string, 0, len(s.ByPlatform))
	for name := range s.ByPlatform {
		platforms = append(platforms, name)
	}
	sort.Strings(platforms)
	for _, name := range platforms {
		rows = append(rows, []string{name + " programs", strconv.Itoa(s.ByPlatform[name])})
	}
	rows = append(rows,
		[]string{"Self hosted programs", strconv.Itoa(s.SelfHosted)},
		[]string{"Programs with rewards", strconv.Itoa(s.Bounty)},
		[]string{"Programs offering swag", strconv.Itoa(s.Swag)},
		[]string{"Programs without rewards", strconv.Itoa(s.NoBounty)},
	)
	table.AppendBulk(rows)
	table.Render()
}
