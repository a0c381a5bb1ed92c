package advice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/thebtf/decody/pkg/models"
)

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini-backed generator. modelName defaults to
// gemini-1.5-flash when empty.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) ForCategory(ctx context.Context, category string, findings []models.MatchedFinding) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a security analyst. A scan produced findings in the %q category.\n", category)
	sb.WriteString("For each finding the triggered rule's explanation is listed. ")
	sb.WriteString("Explain in plain language what these findings mean and how to remediate them. ")
	sb.WriteString("Answer with a short paragraph, no markdown.\n\n")
	for _, f := range findings {
		fmt.Fprintf(&sb, "- scanner %s reported %q: %s\n", f.ScannerName, f.ShortInput, f.RuleExplanation)
	}
	return g.generate(ctx, sb.String())
}

func (g *Gemini) ForSummary(ctx context.Context, advices []models.CategoryAdvice) (string, error) {
	var sb strings.Builder
	sb.WriteString("You are a security analyst. Below are per-category advices from one scan session. ")
	sb.WriteString("Summarize the overall security posture and the most urgent actions. ")
	sb.WriteString("Answer with a short paragraph, no markdown.\n\n")
	for _, a := range advices {
		fmt.Fprintf(&sb, "[%s] %s\n", a.Category, a.Advice)
	}
	return g.generate(ctx, sb.String())
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("response contained no text parts")
	}
	return strings.TrimSpace(out.String()), nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
