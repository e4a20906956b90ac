package consensus

import (
	"fmt"
	"math"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

// ManualReviewIssue is reported when no judge could be reached.
const ManualReviewIssue = "both judges failed: manual review required"

// Verdict is the combined assessment of an extraction.
type Verdict struct {
	Confidence float64
	Criteria   llm.Criteria
	Issues     []string
	Reasoning  string
	Passed     bool
	Judges     int // judges that responded
}

// NeedsReview is true whenever the verdict did not pass.
func (v Verdict) NeedsReview() bool { return !v.Passed }

// JudgeResult is one judge's successful reply, tagged with the judge's name.
type JudgeResult struct {
	Judge   string
	Verdict llm.JudgeVerdict
}

// Passes applies the gate: every criterion holds and confidence reaches the threshold.
func Passes(c llm.Criteria, confidence float64) bool {
	return c.All() && confidence >= constants.ConfidenceThreshold
}

// Combine merges up to two judge results; nil means that judge failed.
func Combine(a, b *JudgeResult) Verdict {
	switch {
	case a == nil && b == nil:
		return Verdict{
			Confidence: constants.NeutralConfidence,
			Criteria:   llm.AllCriteria(),
			Issues:     []string{ManualReviewIssue},
			Reasoning:  "no judge responded; neutral verdict",
			Passed:     false,
		}
	case a == nil:
		return single(b)
	case b == nil:
		return single(a)
	}

	confidence := roundConfidence((a.Verdict.Confidence + b.Verdict.Confidence) / 2)
	criteria := a.Verdict.Criteria.And(b.Verdict.Criteria)
	return Verdict{
		Confidence: confidence,
		Criteria:   criteria,
		Issues:     union(a.Verdict.Issues, b.Verdict.Issues),
		Reasoning:  fmt.Sprintf("%s: %s\n%s: %s", a.Judge, a.Verdict.Reasoning, b.Judge, b.Verdict.Reasoning),
		Passed:     Passes(criteria, confidence),
		Judges:     2,
	}
}

func single(r *JudgeResult) Verdict {
	issues := append([]string(nil), r.Verdict.Issues...)
	if issues == nil {
		issues = []string{}
	}
	return Verdict{
		Confidence: r.Verdict.Confidence,
		Criteria:   r.Verdict.Criteria,
		Issues:     issues,
		Reasoning:  fmt.Sprintf("[single judge: %s] %s", r.Judge, r.Verdict.Reasoning),
		Passed:     Passes(r.Verdict.Criteria, r.Verdict.Confidence),
		Judges:     1,
	}
}

// union keeps first occurrences in order, matching strings exactly.
func union(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, l := range lists {
		for _, s := range l {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// roundConfidence removes float noise from averaging (0.9+0.5)/2.
func roundConfidence(c float64) float64 {
	return math.Round(c*1e6) / 1e6
}

func clamp01(c float64) float64 {
	return math.Max(0, math.Min(1, c))
}
