package generation

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/assessment"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

//go:embed prompts/generate_options.txt
var generateOptionsPrompt string

//go:embed prompts/assess_progress.txt
var assessProgressPrompt string

var promptFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

var (
	optionsTemplate = template.Must(template.New("generate_options").Funcs(promptFuncs).Parse(generateOptionsPrompt))
	assessTemplate  = template.Must(template.New("assess_progress").Funcs(promptFuncs).Parse(assessProgressPrompt))
)

// Gemini generates options and assessments through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini builds a Gemini-backed generator.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		client: client,
		model:  client.GenerativeModel(model),
	}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() {
	g.client.Close()
}

type optionPayload struct {
	Text      string `json:"text"`
	Type      string `json:"type"`
	Triplet   *int   `json:"related-triplet"`
	Attribute string `json:"related-attribute"`
}

// GenerateOptions implements Generator.
func (g *Gemini) GenerateOptions(ctx context.Context, req OptionsRequest) ([]action.Option, error) {
	faction, ok := req.Scenario.Faction(req.Actor)
	if !ok {
		return nil, fmt.Errorf("generate options: unknown faction %q", req.Actor)
	}

	var buf bytes.Buffer
	err := optionsTemplate.Execute(&buf, struct {
		Actor       string
		Background  string
		Perks       string
		Weaknesses  string
		Motivations string
		Triplets    []scenario.Triplet
		Counterpart string
		History     []string
		ForceAction bool
	}{
		Actor:       req.Actor,
		Background:  faction.Profile.Background,
		Perks:       faction.Profile.Perks,
		Weaknesses:  faction.Profile.Weaknesses,
		Motivations: faction.Profile.Motivations,
		Triplets:    faction.Triplets,
		Counterpart: req.Counterpart,
		History:     req.History,
		ForceAction: req.ForceAction,
	})
	if err != nil {
		return nil, fmt.Errorf("render options prompt: %w", err)
	}

	text, err := g.generateText(ctx, buf.String())
	if err != nil {
		return nil, fmt.Errorf("generate options: %w", err)
	}

	var payloads []optionPayload
	if err := json.Unmarshal([]byte(stripFences(text)), &payloads); err != nil {
		return nil, fmt.Errorf("parse options response: %w", err)
	}

	raw := make([]action.Option, 0, len(payloads))
	for _, p := range payloads {
		option := action.Option{
			Text:      p.Text,
			Type:      action.OptionType(strings.ToLower(strings.TrimSpace(p.Type))),
			Attribute: scenario.Attribute(strings.ToLower(strings.TrimSpace(p.Attribute))),
		}
		if p.Triplet != nil {
			option.Triplet = *p.Triplet
		}
		raw = append(raw, option)
	}
	return sanitizeOptions(req.Scenario, req.Actor, raw, req.ForceAction)
}

// AssessProgress implements Generator.
func (g *Gemini) AssessProgress(ctx context.Context, req AssessmentRequest) (assessment.Breakdown, error) {
	var buf bytes.Buffer
	err := assessTemplate.Execute(&buf, struct {
		Round    int
		Factions []scenario.Faction
		History  []string
	}{
		Round:    req.Round,
		Factions: req.Scenario.Factions,
		History:  req.History,
	})
	if err != nil {
		return nil, fmt.Errorf("render assessment prompt: %w", err)
	}

	text, err := g.generateText(ctx, buf.String())
	if err != nil {
		return nil, fmt.Errorf("assess progress: %w", err)
	}

	var breakdown assessment.Breakdown
	if err := json.Unmarshal([]byte(stripFences(text)), &breakdown); err != nil {
		return nil, fmt.Errorf("parse assessment response: %w", err)
	}
	if len(breakdown) == 0 {
		return nil, ErrNoAssessment
	}
	return breakdown, nil
}

func (g *Gemini) generateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type %T", resp.Candidates[0].Content.Parts[0])
	}
	return string(text), nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
