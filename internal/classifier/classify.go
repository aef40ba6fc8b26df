package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

// Request is the input to Classify. Text must already be sanitized.
type Request struct {
	Text         string
	Image        *Image
	CategoryHint string
	Language     string
}

type Result struct {
	Sentiment          models.Sentiment `json:"sentiment"`
	Category           string           `json:"category"`
	Summary            string           `json:"summary"`
	RiskScore          int              `json:"riskScore"`
	EcoImpactScore     int              `json:"ecoImpactScore"`
	EcoImpactReasoning string           `json:"ecoImpactReasoning"`
	IsCivicIssue       bool             `json:"isCivicIssue"`
	RefusalReason      string           `json:"refusalReason,omitempty"`
}

// classificationSchema checks shape only. Out-of-range values are repaired.
const classificationSchema = `{
  "type": "object",
  "required": ["isCivicIssue"],
  "properties": {
    "sentiment": {"type": "string"},
    "category": {"type": "string"},
    "summary": {"type": "string"},
    "riskScore": {"type": "number"},
    "ecoImpactScore": {"type": "number"},
    "ecoImpactReasoning": {"type": "string"},
    "isCivicIssue": {"type": "boolean"},
    "refusalReason": {"type": ["string", "null"]}
  }
}`

const classifyInstructions = `You triage resident reports for a city government.
Decide whether the report describes a legitimate civic issue (infrastructure, safety, environment, public services, or feedback about them).
Respond with a single JSON object with these fields:
  sentiment: one of "positive", "negative", "neutral"
  category: short category label; keep the resident's category unless clearly wrong
  summary: one sentence summary
  riskScore: integer 0-100, risk to public safety
  ecoImpactScore: integer 0-100, environmental impact
  ecoImpactReasoning: one or two sentences
  isCivicIssue: boolean
  refusalReason: short user-facing reason when isCivicIssue is false`

// rawResult mirrors Result with loose numeric types for decoding.
type rawResult struct {
	Sentiment          string  `json:"sentiment"`
	Category           string  `json:"category"`
	Summary            string  `json:"summary"`
	RiskScore          float64 `json:"riskScore"`
	EcoImpactScore     float64 `json:"ecoImpactScore"`
	EcoImpactReasoning string  `json:"ecoImpactReasoning"`
	IsCivicIssue       bool    `json:"isCivicIssue"`
	RefusalReason      *string `json:"refusalReason"`
}

// Classify labels a report. A missing API key yields a config error; a
// non-civic verdict is returned as a Result with IsCivicIssue false and is
// left to the caller to turn into a refusal.
func (c *Client) Classify(ctx context.Context, req Request) (*Result, error) {
	if !c.Configured() {
		return nil, apperr.Config("ai_unconfigured",
			"AI classification is not configured. Set AI_API_KEY to enable report submission.")
	}
	lang := req.Language
	if lang == "" {
		lang = c.cfg.Language
	}

	prompt := fmt.Sprintf("%s\nWrite summary, ecoImpactReasoning and refusalReason in language %q.\nResident category: %q\nReport:\n%s",
		classifyInstructions, lang, req.CategoryHint, req.Text)

	var content any = prompt
	if req.Image != nil && len(req.Image.Data) > 0 {
		content = []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: req.Image.DataURL()}},
		}
	}

	out, err := c.callChat(ctx, []chatMessage{{Role: "user", Content: content}}, true)
	if err != nil {
		c.logger.Error("classification call failed", zap.Error(err))
		return nil, apperr.External("classification_failed",
			"We couldn't analyze your report right now. Please try again.", err)
	}

	res, err := parseClassification(out, req.CategoryHint)
	if err != nil {
		c.logger.Warn("classification response rejected", zap.Error(err))
		return nil, apperr.External("classification_invalid",
			"We couldn't analyze your report right now. Please try again.", err)
	}
	return res, nil
}

func parseClassification(content, categoryHint string) (*Result, error) {
	cleaned := cleanJSONResponse(content)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(classificationSchema),
		gojsonschema.NewStringLoader(cleaned),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, strings.Join(msgs, "; "))
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return repair(raw, categoryHint), nil
}

// repair coerces a schema-valid payload into the value ranges the rest of the
// application relies on.
func repair(raw rawResult, categoryHint string) *Result {
	res := &Result{
		Sentiment:          models.Sentiment(strings.ToLower(strings.TrimSpace(raw.Sentiment))),
		Category:           strings.TrimSpace(raw.Category),
		Summary:            strings.TrimSpace(raw.Summary),
		RiskScore:          clampScore(raw.RiskScore),
		EcoImpactScore:     clampScore(raw.EcoImpactScore),
		EcoImpactReasoning: strings.TrimSpace(raw.EcoImpactReasoning),
		IsCivicIssue:       raw.IsCivicIssue,
	}
	if !res.Sentiment.Valid() {
		res.Sentiment = models.SentimentNeutral
	}
	if res.Category == "" {
		res.Category = categoryHint
	}
	if raw.RefusalReason != nil {
		res.RefusalReason = strings.TrimSpace(*raw.RefusalReason)
	}
	if !res.IsCivicIssue && res.RefusalReason == "" {
		res.RefusalReason = "This doesn't look like a civic issue."
	}
	return res
}

func clampScore(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
