package pipeline

import "time"

// Summary is the result of one Run.
type Summary struct {
	Operation  Operation
	Dir        string
	MergedFile string
	NewFile    string
	// Results are in catalog order, one per selected program.
	Results []ProgramResult
	Started time.Time
	Elapsed time.Duration
}

// Failed returns the programs that did not complete.
func (s *Summary) Failed() []ProgramResult {
	var out []ProgramResult
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Succeeded counts the programs that completed.
func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// NewSubdomains is the number of lines appended to NewFile by this run.
func (s *Summary) NewSubdomains() int {
	n := 0
	for _, r := range s.Results {
		n += r.Merge.New
	}
	return n
}

// Suppressed is the number of subdomains the ledger failed to store.
func (s *Summary) Suppressed() int {
	n := 0
	for _, r := range s.Results {
		n += r.Merge.Suppressed
	}
	return n
}
