package llm

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
)

// ParseJudgeReply validates a judge's JSON reply and decodes it.
func ParseJudgeReply(content string) (JudgeVerdict, error) {
	raw := CleanJSONReply(content)
	if err := ValidateJSONAgainstSchema(BuildJudgeJSONSchema(), raw); err != nil {
		return JudgeVerdict{}, fmt.Errorf("%w: judge reply: %v", common.ErrSchemaViolation, err)
	}
	var v JudgeVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return JudgeVerdict{}, fmt.Errorf("%w: decode judge reply: %v", common.ErrSchemaViolation, err)
	}
	if v.Issues == nil {
		v.Issues = []string{}
	}
	return v, nil
}
