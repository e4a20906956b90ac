package consensus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/copy-catalog/internal/extraction"
)

// QuickCheckResult is the outcome of the syntactic pre-check.
type QuickCheckResult struct {
	Passed bool
	Issues []string
}

// QuickValidationChecks runs purely syntactic checks on a payload before any
// judge is called: it must be a JSON object, carry at least one expected
// section, and use only ASCII top-level field names.
func QuickValidationChecks(payload []byte) QuickCheckResult {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return QuickCheckResult{Issues: []string{fmt.Sprintf("payload is not valid JSON: %v", err)}}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return QuickCheckResult{Issues: []string{"payload is not a JSON object"}}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var issues []string
	hasSection := false
	for _, k := range keys {
		if extraction.IsSection(k) {
			hasSection = true
		}
		if !isASCII(k) {
			issues = append(issues, fmt.Sprintf("top-level field name %q contains non-ASCII characters", k))
		}
	}
	if !hasSection {
		names := make([]string, len(extraction.Sections))
		for i, s := range extraction.Sections {
			names[i] = string(s)
		}
		issues = append([]string{"none of the expected sections is present (" + strings.Join(names, ", ") + ")"}, issues...)
	}
	return QuickCheckResult{Passed: len(issues) == 0, Issues: issues}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
