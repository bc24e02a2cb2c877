// Package eval measures agent quality and cost: run a set of task cases
// against a target, collect pass/fail, latency and token samples, and
// aggregate them into a report.
package eval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jkmaina/autogen-blueprint/memory"
)

// Case is one evaluation task with its expectation.
type Case struct {
	Name   string
	Task   string
	Expect func(response string) bool
}

// Outcome is what a target produced for one task.
type Outcome struct {
	Response string
	Usage    memory.Usage
}

// Target runs a single task. Adapters exist for whatever is being measured:
// a lone agent, a knot, or a team.
type Target func(ctx context.Context, task string) (Outcome, error)

// Sample is the measured result of one case.
type Sample struct {
	Case     string
	Response string
	Passed   bool
	Latency  time.Duration
	Tokens   int64
	Err      error
}

// Runner evaluates cases sequentially against a target. Failures of single
// cases are recorded as samples, not surfaced as run errors.
type Runner struct {
	target Target
	cases  []Case
}

func NewRunner(target Target, cases ...Case) *Runner {
	return &Runner{target: target, cases: cases}
}

// Run executes all cases and aggregates them into a report.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{Samples: make([]Sample, 0, len(r.cases))}

	for _, c := range r.cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := time.Now()
		outcome, err := r.target(ctx, c.Task)
		sample := Sample{
			Case:     c.Name,
			Response: outcome.Response,
			Latency:  time.Since(start),
			Tokens:   outcome.Usage.TotalTokens,
			Err:      err,
		}
		if err == nil && c.Expect != nil {
			sample.Passed = c.Expect(outcome.Response)
		}
		report.Samples = append(report.Samples, sample)
	}

	return report, nil
}

// Report aggregates the samples of one evaluation run.
type Report struct {
	Samples []Sample
}

// PassRate is the fraction of cases that met their expectation.
func (r Report) PassRate() float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	passed := 0
	for _, s := range r.Samples {
		if s.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Samples))
}

// MeanLatency averages the per-case latencies.
func (r Report) MeanLatency() time.Duration {
	if len(r.Samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range r.Samples {
		total += s.Latency
	}
	return total / time.Duration(len(r.Samples))
}

// TotalTokens sums token usage across all cases.
func (r Report) TotalTokens() int64 {
	var total int64
	for _, s := range r.Samples {
		total += s.Tokens
	}
	return total
}

// Render formats the report as text, one line per case plus the aggregates.
func (r Report) Render() string {
	var b strings.Builder
	b.WriteString("=== Evaluation Report ===\n\n")

	for _, s := range r.Samples {
		status := "FAIL"
		switch {
		case s.Err != nil:
			status = "ERROR"
		case s.Passed:
			status = "PASS"
		}
		fmt.Fprintf(&b, "%-5s %-30s latency=%s tokens=%d\n", status, s.Case, s.Latency.Round(time.Millisecond), s.Tokens)
		if s.Err != nil {
			fmt.Fprintf(&b, "      error: %v\n", s.Err)
		}
	}

	fmt.Fprintf(&b, "\ncases: %d\n", len(r.Samples))
	fmt.Fprintf(&b, "pass rate: %.1f%%\n", r.PassRate()*100)
	fmt.Fprintf(&b, "mean latency: %s\n", r.MeanLatency().Round(time.Millisecond))
	fmt.Fprintf(&b, "total tokens: %d\n", r.TotalTokens())
	return b.String()
}
