package consensus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

const validPayload = `{"ProductCopy":[{"ProductName":"Phone","Headlines":[],"AdvertisingCopy":"","KeyFeatureBullets":[],"LegalReferences":[]}]}`

type fakeJudge struct {
	name    string
	verdict llm.JudgeVerdict
	err     error
	delay   time.Duration
	panics  bool
	calls   atomic.Int32
}

func (f *fakeJudge) Name() string { return f.name }

func (f *fakeJudge) Judge(ctx context.Context, _ llm.JudgeRequest) (llm.JudgeVerdict, error) {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return llm.JudgeVerdict{}, ctx.Err()
		}
	}
	return f.verdict, f.err
}

func passing(conf float64, issues ...string) llm.JudgeVerdict {
	return llm.JudgeVerdict{Criteria: llm.AllCriteria(), Confidence: conf, Reasoning: "looks right", Issues: issues}
}

func TestQuickValidationChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		passed  bool
		issue   string
	}{
		{name: "valid", payload: validPayload, passed: true},
		{name: "not json", payload: `{`, issue: "not valid JSON"},
		{name: "array", payload: `[]`, issue: "not a JSON object"},
		{name: "empty object", payload: `{}`, issue: "none of the expected sections"},
		{name: "non-ascii key", payload: `{"ProductCopy":[],"Produktüberschrift":[]}`, issue: "non-ASCII"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := QuickValidationChecks([]byte(tt.payload))
			assert.Equal(t, tt.passed, res.Passed)
			if tt.issue != "" {
				require.NotEmpty(t, res.Issues)
				assert.Contains(t, res.Issues[0], tt.issue)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	t.Parallel()

	t.Run("average and intersect", func(t *testing.T) {
		a := &JudgeResult{Judge: "a", Verdict: passing(0.9, "x", "y")}
		bv := passing(0.5, "y", "z")
		bv.Criteria.Complete = false
		b := &JudgeResult{Judge: "b", Verdict: bv}

		v := Combine(a, b)
		assert.Equal(t, 0.7, v.Confidence)
		assert.False(t, v.Criteria.Complete)
		assert.True(t, v.Criteria.FieldNamesEnglish)
		assert.Equal(t, []string{"x", "y", "z"}, v.Issues)
		assert.False(t, v.Passed)
		assert.Equal(t, 2, v.Judges)
		assert.Contains(t, v.Reasoning, "a: looks right")
		assert.Contains(t, v.Reasoning, "b: looks right")
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		v := Combine(&JudgeResult{Judge: "a", Verdict: passing(0.9)}, &JudgeResult{Judge: "b", Verdict: passing(0.5)})
		assert.Equal(t, 0.7, v.Confidence)
		assert.True(t, v.Passed)
	})

	t.Run("single judge is used as is", func(t *testing.T) {
		v := Combine(nil, &JudgeResult{Judge: "b", Verdict: passing(0.8, "minor")})
		assert.Equal(t, 0.8, v.Confidence)
		assert.Equal(t, []string{"minor"}, v.Issues)
		assert.True(t, v.Passed)
		assert.Equal(t, 1, v.Judges)
		assert.Contains(t, v.Reasoning, "[single judge: b]")
	})

	t.Run("no judges", func(t *testing.T) {
		v := Combine(nil, nil)
		assert.Equal(t, 0.5, v.Confidence)
		assert.False(t, v.Passed)
		assert.True(t, v.NeedsReview())
		assert.Equal(t, []string{ManualReviewIssue}, v.Issues)
		assert.Equal(t, 0, v.Judges)
	})
}

func TestValidatorBothJudges(t *testing.T) {
	t.Parallel()

	a := &fakeJudge{name: "a", verdict: passing(0.95)}
	b := &fakeJudge{name: "b", verdict: passing(0.9)}
	v := NewValidator(a, b, time.Second, nil)

	got := v.Validate(context.Background(), "source", []byte(validPayload), []string{"local issue"})
	assert.InDelta(t, 0.925, got.Confidence, 1e-9)
	assert.True(t, got.Passed)
	assert.False(t, got.NeedsReview())
	assert.Equal(t, []string{"local issue"}, got.Issues)
	assert.EqualValues(t, 1, a.calls.Load())
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestValidatorQuickCheckSkipsJudges(t *testing.T) {
	t.Parallel()

	a := &fakeJudge{name: "a", verdict: passing(1)}
	b := &fakeJudge{name: "b", verdict: passing(1)}
	v := NewValidator(a, b, time.Second, nil)

	got := v.Validate(context.Background(), "source", []byte(`{}`), nil)
	assert.False(t, got.Passed)
	assert.Equal(t, 0.0, got.Confidence)
	assert.NotEmpty(t, got.Issues)
	assert.Zero(t, a.calls.Load())
	assert.Zero(t, b.calls.Load())
}

func TestValidatorJudgeFailures(t *testing.T) {
	t.Parallel()

	t.Run("one judge errors", func(t *testing.T) {
		a := &fakeJudge{name: "a", err: errors.New("unavailable")}
		b := &fakeJudge{name: "b", verdict: passing(0.75, "check bullets")}
		got := NewValidator(a, b, time.Second, nil).Validate(context.Background(), "s", []byte(validPayload), nil)
		assert.Equal(t, 0.75, got.Confidence)
		assert.Equal(t, []string{"check bullets"}, got.Issues)
		assert.True(t, got.Passed)
		assert.Equal(t, 1, got.Judges)
	})

	t.Run("one judge panics", func(t *testing.T) {
		a := &fakeJudge{name: "a", verdict: passing(0.8)}
		b := &fakeJudge{name: "b", panics: true}
		got := NewValidator(a, b, time.Second, nil).Validate(context.Background(), "s", []byte(validPayload), nil)
		assert.Equal(t, 0.8, got.Confidence)
		assert.Equal(t, 1, got.Judges)
	})

	t.Run("both time out", func(t *testing.T) {
		a := &fakeJudge{name: "a", verdict: passing(1), delay: time.Second}
		b := &fakeJudge{name: "b", verdict: passing(1), delay: time.Second}
		got := NewValidator(a, b, 20*time.Millisecond, nil).Validate(context.Background(), "s", []byte(validPayload), []string{"local"})
		assert.Equal(t, 0.5, got.Confidence)
		assert.False(t, got.Passed)
		assert.Equal(t, []string{ManualReviewIssue, "local"}, got.Issues)
	})

	t.Run("missing judge counts as failed", func(t *testing.T) {
		b := &fakeJudge{name: "b", verdict: passing(0.6)}
		got := NewValidator(nil, b, time.Second, nil).Validate(context.Background(), "s", []byte(validPayload), nil)
		assert.Equal(t, 0.6, got.Confidence)
		assert.False(t, got.Passed)
	})
}

func TestValidatorClampsConfidence(t *testing.T) {
	t.Parallel()

	a := &fakeJudge{name: "a", verdict: passing(1.4)}
	b := &fakeJudge{name: "b", verdict: passing(-0.2)}
	got := NewValidator(a, b, time.Second, nil).Validate(context.Background(), "s", []byte(validPayload), nil)
	assert.Equal(t, 0.5, got.Confidence)
}
