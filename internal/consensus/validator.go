// Package consensus estimates extraction correctness with two independent judges.
package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

// Validator runs the quick checks and then both judges concurrently.
type Validator struct {
	judges  [2]llm.Judge
	timeout time.Duration
	logger  *slog.Logger
}

// NewValidator builds a validator over two judges. Either may be nil, which
// counts as a judge that always fails.
func NewValidator(primary, secondary llm.Judge, timeout time.Duration, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{judges: [2]llm.Judge{primary, secondary}, timeout: timeout, logger: logger}
}

// Validate scores payload against source. It never returns an error: judge
// failures degrade the verdict instead. localIssues are appended to the
// verdict's issues without affecting Passed.
func (v *Validator) Validate(ctx context.Context, source string, payload []byte, localIssues []string) Verdict {
	start := time.Now()

	quick := QuickValidationChecks(payload)
	if !quick.Passed {
		v.logger.Warn("consensus.quick_check.failed", "issues", quick.Issues)
		return Verdict{
			Confidence: 0,
			Issues:     union(quick.Issues, localIssues),
			Reasoning:  "quick validation checks failed; judges not invoked",
			Passed:     false,
		}
	}

	req := llm.JudgeRequest{SourceText: source, Extraction: payload}
	// Judges never return an error to the group, so one failing judge cannot
	// cancel the other.
	var (
		g       errgroup.Group
		results [2]*JudgeResult
	)
	for i, j := range v.judges {
		if j == nil {
			continue
		}
		i, j := i, j
		g.Go(func() error {
			results[i] = v.runJudge(ctx, j, req)
			return nil
		})
	}
	_ = g.Wait()

	verdict := Combine(results[0], results[1])
	verdict.Issues = union(verdict.Issues, localIssues)

	v.logger.Info("consensus.verdict",
		"judges", verdict.Judges,
		"confidence", verdict.Confidence,
		"passed", verdict.Passed,
		"failed_criteria", verdict.Criteria.Failed(),
		"issues", len(verdict.Issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return verdict
}

// runJudge isolates one judge call: its own timeout, and any error or panic
// becomes a nil result.
func (v *Validator) runJudge(ctx context.Context, j llm.Judge, req llm.JudgeRequest) (res *JudgeResult) {
	ctx, cancel := common.WithTimeout(ctx, v.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("consensus.judge.panic", "judge", j.Name(), "panic", fmt.Sprint(r))
			res = nil
		}
	}()

	start := time.Now()
	out, err := j.Judge(ctx, req)
	if err != nil {
		v.logger.Warn("consensus.judge.failed", "judge", j.Name(), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil
	}
	out.Confidence = clamp01(out.Confidence)
	return &JudgeResult{Judge: j.Name(), Verdict: out}
}
