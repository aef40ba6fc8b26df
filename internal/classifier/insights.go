package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

// maxInsightReports bounds the prompt size.
const maxInsightReports = 100

// GenerateReport writes a markdown briefing over an organization's reports.
func (c *Client) GenerateReport(ctx context.Context, orgName string, reports []models.Report) (string, error) {
	if !c.Configured() {
		return "", apperr.Config("ai_unconfigured",
			"AI insights are not configured. Set AI_API_KEY to generate reports.")
	}
	if len(reports) == 0 {
		return "", apperr.Validation("no_reports", "There are no reports to summarize yet.")
	}
	if len(reports) > maxInsightReports {
		reports = reports[:maxInsightReports]
	}

	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "- [%s] (%s, %s, risk %d, eco %d) %s\n",
			r.Status, r.Category, r.Sentiment, r.RiskScore, r.EcoImpactScore, oneLine(r.Content))
	}
	prompt := fmt.Sprintf(`You are an analyst for %s. Write a concise markdown briefing for city staff covering
the main themes, the highest-risk open issues, environmental concerns, and suggested next steps.
Write in language %q.
Reports:
%s`, orgName, c.cfg.Language, b.String())

	out, err := c.callChat(ctx, []chatMessage{{Role: "user", Content: prompt}}, false)
	if err != nil {
		c.logger.Error("insight generation failed", zap.Error(err))
		return "", apperr.External("insights_failed", "We couldn't generate the report right now. Please try again.", err)
	}
	return strings.TrimSpace(out), nil
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return truncate(s, 280)
}
