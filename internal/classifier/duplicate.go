package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

type Candidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type DuplicateVerdict struct {
	IsDuplicate bool   `json:"isDuplicate"`
	DuplicateID string `json:"duplicateId,omitempty"`
}

const duplicateSchema = `{
  "type": "object",
  "required": ["isDuplicate"],
  "properties": {
    "isDuplicate": {"type": "boolean"},
    "duplicateId": {"type": ["string", "null"]}
  }
}`

// CheckDuplicate asks whether draft describes the same issue as one of the
// candidates. It is advisory: an unconfigured client, a failed call or a
// malformed answer all mean "no duplicate".
func (c *Client) CheckDuplicate(ctx context.Context, draft string, candidates []Candidate) DuplicateVerdict {
	if !c.Configured() || len(candidates) == 0 || strings.TrimSpace(draft) == "" {
		return DuplicateVerdict{}
	}

	list, err := json.Marshal(candidates)
	if err != nil {
		return DuplicateVerdict{}
	}
	prompt := fmt.Sprintf(`Decide whether the new report describes the same real-world issue as any existing report.
Respond with JSON: {"isDuplicate": boolean, "duplicateId": id of the matching report or null}.
New report:
%s
Existing reports:
%s`, draft, list)

	out, err := c.callChat(ctx, []chatMessage{{Role: "user", Content: prompt}}, true)
	if err != nil {
		c.logger.Debug("duplicate check skipped", zap.Error(err))
		return DuplicateVerdict{}
	}
	return parseDuplicate(out, candidates)
}

func parseDuplicate(content string, candidates []Candidate) DuplicateVerdict {
	cleaned := cleanJSONResponse(content)
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(duplicateSchema),
		gojsonschema.NewStringLoader(cleaned),
	)
	if err != nil || !result.Valid() {
		return DuplicateVerdict{}
	}

	var raw struct {
		IsDuplicate bool    `json:"isDuplicate"`
		DuplicateID *string `json:"duplicateId"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return DuplicateVerdict{}
	}
	if !raw.IsDuplicate || raw.DuplicateID == nil {
		return DuplicateVerdict{}
	}
	// Only ids we actually offered count as a match.
	id := strings.TrimSpace(*raw.DuplicateID)
	for _, cand := range candidates {
		if cand.ID == id {
			return DuplicateVerdict{IsDuplicate: true, DuplicateID: id}
		}
	}
	return DuplicateVerdict{}
}
