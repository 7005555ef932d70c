package framework

import (
	"errors"
	"fmt"
	"strings"
)

// Results is the outcome of a test run. Skipped tests are neither passes nor failures.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skipped  []TestResult
}

type TestResult struct {
	TestID     TestID
	Errors     []error
	Skipped    bool
	SkipReason string
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Passed returns the number of tests that ran to completion without failing.
func (r Results) Passed() int {
	return len(r.Tests) - len(r.Failures) - len(r.Skipped)
}

type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

// reformatError condenses the multi-line output of testify assertions, which is meant for the Go
// test runner, into just the failure description and any messages.
func reformatError(err error) error {
	s := err.Error()
	if !strings.Contains(s, "Error Trace:") {
		return err
	}
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "Error Trace:"), strings.HasPrefix(trimmed, "Test:"):
			continue
		case strings.HasPrefix(trimmed, "Error:"):
			kept = append(kept, strings.TrimSpace(strings.TrimPrefix(trimmed, "Error:")))
		case strings.HasPrefix(trimmed, "Messages:"):
			kept = append(kept, strings.TrimSpace(strings.TrimPrefix(trimmed, "Messages:")))
		default:
			if len(kept) == 0 {
				continue // still inside the trace block
			}
			kept = append(kept, trimmed)
		}
	}
	if len(kept) == 0 {
		return err
	}
	return errors.New(strings.Join(kept, "\n"))
}

// PrintResults writes a summary of the results to standard output.
func PrintResults(results Results) {
	if results.OK() {
		fmt.Printf("All tests passed (%d passed, %d skipped)\n", results.Passed(), len(results.Skipped))
		return
	}
	fmt.Printf("FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		fmt.Printf("  * %s\n", f.TestID)
		for _, e := range f.Errors {
			for _, line := range strings.Split(e.Error(), "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
	}
	fmt.Printf("%d passed, %d failed, %d skipped\n", results.Passed(), len(results.Failures), len(results.Skipped))
}
