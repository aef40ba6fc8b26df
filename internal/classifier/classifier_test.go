package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

// fakeAI serves /chat/completions with a fixed assistant message.
func fakeAI(t *testing.T, content string) (*httptest.Server, *int32, *chatRequest) {
	t.Helper()
	var calls int32
	var last chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &last
}

func newTestClient(baseURL string) *Client {
	return New(Config{BaseURL: baseURL, APIKey: "test-key", Model: "test-model"}, nil)
}

func TestClassifyUnconfigured(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Classify(context.Background(), Request{Text: "pothole"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func TestClassifySuccess(t *testing.T) {
	srv, calls, last := fakeAI(t, "```json\n"+`{"sentiment":"negative","category":"Roads","summary":"Large pothole","riskScore":72.4,"ecoImpactScore":10,"ecoImpactReasoning":"Minor","isCivicIssue":true}`+"\n```")
	c := newTestClient(srv.URL)

	res, err := c.Classify(context.Background(), Request{Text: "Huge pothole on Elm", CategoryHint: "Infrastructure", Language: "es"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "test-model", last.Model)
	require.NotNil(t, last.ResponseFormat)
	assert.Equal(t, "json_object", last.ResponseFormat.Type)
	prompt, ok := last.Messages[0].Content.(string)
	require.True(t, ok)
	assert.Contains(t, prompt, `"es"`)
	assert.Contains(t, prompt, "Huge pothole on Elm")

	assert.Equal(t, models.SentimentNegative, res.Sentiment)
	assert.Equal(t, "Roads", res.Category)
	assert.Equal(t, 72, res.RiskScore)
	assert.True(t, res.IsCivicIssue)
}

func TestClassifyWithImageSendsParts(t *testing.T) {
	srv, _, last := fakeAI(t, `{"isCivicIssue":true}`)
	c := newTestClient(srv.URL)

	_, err := c.Classify(context.Background(), Request{
		Text:  "Broken sign",
		Image: &Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	})
	require.NoError(t, err)

	parts, ok := last.Messages[0].Content.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
}

func TestClassifyRefusal(t *testing.T) {
	srv, _, _ := fakeAI(t, `{"isCivicIssue":false,"refusalReason":"Not applicable"}`)
	res, err := newTestClient(srv.URL).Classify(context.Background(), Request{Text: "buy crypto"})
	require.NoError(t, err)
	assert.False(t, res.IsCivicIssue)
	assert.Equal(t, "Not applicable", res.RefusalReason)
}

func TestClassifyMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":         "I think this is a pothole",
		"missing verdict":  `{"sentiment":"negative"}`,
		"wrong type":       `{"isCivicIssue":"yes"}`,
		"score not number": `{"isCivicIssue":true,"riskScore":"high"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv, _, _ := fakeAI(t, body)
			_, err := newTestClient(srv.URL).Classify(context.Background(), Request{Text: "x"})
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindExternal))
			assert.ErrorIs(t, err, ErrResponseInvalid)
		})
	}
}

func TestClassifyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Classify(context.Background(), Request{Text: "x"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindExternal))
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestRepair(t *testing.T) {
	reason := "  "
	res := repair(rawResult{
		Sentiment:      "ANGRY",
		RiskScore:      140,
		EcoImpactScore: -3,
		IsCivicIssue:   false,
		RefusalReason:  &reason,
	}, "Parks")

	assert.Equal(t, models.SentimentNeutral, res.Sentiment)
	assert.Equal(t, "Parks", res.Category)
	assert.Equal(t, 100, res.RiskScore)
	assert.Equal(t, 0, res.EcoImpactScore)
	assert.NotEmpty(t, res.RefusalReason)

	res = repair(rawResult{Sentiment: " Positive ", Category: "Noise", IsCivicIssue: true}, "Parks")
	assert.Equal(t, models.SentimentPositive, res.Sentiment)
	assert.Equal(t, "Noise", res.Category)
	assert.Empty(t, res.RefusalReason)
}

func TestCleanJSONResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONResponse("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSONResponse("Sure! {\"a\":1} Hope that helps"))
	assert.Equal(t, `{"a":1}`, cleanJSONResponse(`  {"a":1}  `))
}

func TestCheckDuplicate(t *testing.T) {
	candidates := []Candidate{{ID: "r-1", Text: "Pothole on Elm"}, {ID: "r-2", Text: "Graffiti"}}

	t.Run("unconfigured is silent", func(t *testing.T) {
		c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)
		assert.Equal(t, DuplicateVerdict{}, c.CheckDuplicate(context.Background(), "pothole again", candidates))
	})

	t.Run("match", func(t *testing.T) {
		srv, _, _ := fakeAI(t, `{"isDuplicate":true,"duplicateId":"r-1"}`)
		v := newTestClient(srv.URL).CheckDuplicate(context.Background(), "pothole on elm street", candidates)
		assert.Equal(t, DuplicateVerdict{IsDuplicate: true, DuplicateID: "r-1"}, v)
	})

	t.Run("unknown id ignored", func(t *testing.T) {
		srv, _, _ := fakeAI(t, `{"isDuplicate":true,"duplicateId":"r-99"}`)
		v := newTestClient(srv.URL).CheckDuplicate(context.Background(), "pothole on elm street", candidates)
		assert.False(t, v.IsDuplicate)
	})

	t.Run("no candidates skips call", func(t *testing.T) {
		srv, calls, _ := fakeAI(t, `{"isDuplicate":true,"duplicateId":"r-1"}`)
		v := newTestClient(srv.URL).CheckDuplicate(context.Background(), "pothole on elm street", nil)
		assert.False(t, v.IsDuplicate)
		assert.Zero(t, atomic.LoadInt32(calls))
	})

	t.Run("failure is silent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		v := newTestClient(srv.URL).CheckDuplicate(context.Background(), "pothole on elm street", candidates)
		assert.False(t, v.IsDuplicate)
	})
}

func TestGenerateReport(t *testing.T) {
	c := New(Config{}, nil)
	_, err := c.GenerateReport(context.Background(), "Springfield", []models.Report{{ID: "1"}})
	assert.True(t, apperr.Is(err, apperr.KindConfig))

	srv, _, last := fakeAI(t, "## Summary\nRoads need work.")
	c = newTestClient(srv.URL)

	_, err = c.GenerateReport(context.Background(), "Springfield", nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	out, err := c.GenerateReport(context.Background(), "Springfield", []models.Report{
		{ID: "1", Content: "Pothole", Category: "Roads", Status: models.StatusReceived},
	})
	require.NoError(t, err)
	assert.Equal(t, "## Summary\nRoads need work.", out)
	assert.Nil(t, last.ResponseFormat)
}
