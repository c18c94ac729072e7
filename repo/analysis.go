package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const footprintPrompt = `You are an expert in carbon footprint calculation. Based on the following user activities, calculate their daily carbon footprint in kg CO2e.
Provide detailed breakdown by category and explain the calculation methodology.

User's daily activities:
%s

Calculate the carbon footprint with these guidelines:
1. Use region-specific emission factors where possible (assume global average if no region specified)
2. Break down the calculation by categories (transportation, food, energy, etc.)
3. Provide the total carbon footprint in kg CO2e
4. Include specific recommendations for reducing their carbon footprint
5. Compare their footprint to global average (which is about 4.5 tons CO2e per year or 12.3 kg CO2e per day)
6. In the end provide some suggestions to the user on how they can reduce their carbon footprint.

Format your response in markdown with clear headings and sections.`

const invoicePrompt = `Analyze this food order receipt/invoice and provide:

1. A list of all food items, classified as vegetarian or non-vegetarian
2. An estimate of the carbon footprint for each item using standard emission factors
3. The total carbon footprint of the order
4. Suggestions to reduce the carbon footprint of future orders

Use India-specific carbon emission factors when available.`

// AnalysisClient talks to an OpenAI-compatible chat-completions endpoint
// (OpenRouter by default). All footprint math and report text come from the
// model; this client only carries the answers across and brings text back.
type AnalysisClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewAnalysisClient(apiKey, model, baseURL string, timeout time.Duration) *AnalysisClient {
	return &AnalysisClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// AnalyzeFootprint sends the full answer snapshot and returns the model's
// markdown report.
func (c *AnalysisClient) AnalyzeFootprint(ctx context.Context, answers map[string]map[string]any) (string, error) {
	payload, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error encoding answers: %w", err)
	}

	return c.complete(ctx, []chatMessage{
		{Role: "user", Content: fmt.Sprintf(footprintPrompt, payload)},
	})
}

// AnalyzeInvoice sends a base64-encoded receipt image for itemized
// analysis.
func (c *AnalysisClient) AnalyzeInvoice(ctx context.Context, imageB64 string) (string, error) {
	return c.complete(ctx, []chatMessage{
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: invoicePrompt},
			{Type: "image_url", ImageURL: &imageURL{URL: "data:image/png;base64," + imageB64}},
		}},
	})
}

func (c *AnalysisClient) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("error encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://carbon-calculator.app")
	req.Header.Set("X-Title", "Carbon Footprint Calculator")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling analysis service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("the analysis request failed with status %d", resp.StatusCode)
	}

	return extractContent(raw), nil
}

// extractContent digs the report text out of whichever envelope the
// provider used. Providers disagree on the shape, so a chain of known
// locations is tried before falling back to the raw response as text.
func extractContent(raw []byte) string {
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return string(raw)
	}

	if choices, ok := envelope["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content
				}
			}
			if text, ok := choice["text"].(string); ok {
				return text
			}
		}
	}

	for _, key := range []string{"response", "result", "output", "text"} {
		if text, ok := envelope[key].(string); ok {
			return text
		}
	}

	if pretty, err := json.MarshalIndent(envelope, "", "  "); err == nil {
		return string(pretty)
	}
	return string(raw)
}
