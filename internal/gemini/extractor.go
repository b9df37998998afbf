// Package gemini provides a Gemini-backed extraction backend as an
// alternative to the vendor extraction API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Extractor extracts structured transactions from statement markdown via
// Gemini. It satisfies the extraction engine's Extractor contract.
type Extractor struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// New creates a Gemini extractor. Credentials come from the environment
// (GOOGLE_API_KEY or Application Default Credentials).
func New(ctx context.Context, model string, log zerolog.Logger) (*Extractor, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Extractor{client: client, model: model, log: log}, nil
}

// Extract asks the model for transactions matching schemaJSON and returns
// them shaped like the vendor response: {"transactions": [...]}.
func (e *Extractor) Extract(ctx context.Context, markdown string, schemaJSON []byte) (map[string]any, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(schemaJSON)},
				{Text: markdown},
			},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal model JSON: %w", err)
	}

	if _, ok := parsed["transactions"]; !ok {
		e.log.Warn().Str("model", e.model).Msg("Model response missing transactions key")
	}
	return parsed, nil
}

// buildPrompt embeds the extraction schema into strict-JSON instructions.
func buildPrompt(schemaJSON []byte) string {
	var b strings.Builder
	b.WriteString("You are a bank statement transaction extractor.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Extract ALL transactions from the statement markdown that follows.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object matching this JSON schema:\n\n")
	b.Write(schemaJSON)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Keep amounts exactly as printed, including currency symbols.\n")
	b.WriteString("- Leave fields empty when the statement does not show them.\n")
	b.WriteString("- Return ONLY valid raw JSON.\n")
	b.WriteString("- Do NOT wrap the response in code fences.\n")
	b.WriteString("- Do NOT use ```json or any Markdown.\n")
	b.WriteString("- Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding junk the model may
// emit despite the instructions, keeping the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
