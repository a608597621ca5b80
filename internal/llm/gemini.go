package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"itemscan/internal/extract"
)

const geminiModel = "gemini-2.5-flash"

// Cap on response length. The four fields fit comfortably; an
// uncapped response only happens when the model rambles.
const maxOutputTokens = 1024

var systemPrompt = strings.TrimSpace(dedent.Dedent(`
	You are an expert appraiser of physical items. Respond ONLY with a
	single bare JSON object, no markdown fences and no surrounding text.
	The object has exactly these string-valued keys: description,
	valueRange, whereToBuySell, backgroundInfo.`))

var analysisPrompt = strings.TrimSpace(dedent.Dedent(`
	Identify the item in this photo and appraise it.

	Respond in JSON format with these fields:
	- description: what the item is, including brand, model and era when visible
	- valueRange: estimated market value range, e.g. "$20-$40"
	- whereToBuySell: venues where this kind of item is bought and sold
	- backgroundInfo: brief history or interesting background of the item

	Example response:
	{"description": "A red ceramic coffee mug", "valueRange": "$5-$10", "whereToBuySell": "Thrift stores, eBay, Facebook Marketplace", "backgroundInfo": "Mass-produced ceramic mugs became common kitchenware in the 20th century."}

	Respond ONLY with the JSON object, no markdown or other text.`))

// Gemini appraises item photos with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed analyzer with the given API key.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: geminiModel}, nil
}

// Analyze sends the image to Gemini in a single conversational turn
// and parses the response into an Analysis. One attempt, no retry: a
// retry would double user-facing latency and cost with no guaranteed
// improvement on a single bad generation.
func (g *Gemini) Analyze(ctx context.Context, image []byte, mediaType string) (Analysis, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analysisPrompt),
			{InlineData: &genai.Blob{Data: image, MIMEType: mediaType}},
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		MaxOutputTokens:   maxOutputTokens,
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	// Text() concatenates every text segment of the response.
	text := result.Text()

	if result.UsageMetadata != nil {
		log.Info().
			Str("model", g.model).
			Int32("inputTokens", result.UsageMetadata.PromptTokenCount).
			Int32("outputTokens", result.UsageMetadata.CandidatesTokenCount).
			Msg("vision llm call")
	}

	obj, err := extract.Object(text)
	if err != nil {
		return nil, err
	}
	return newAnalysis(obj, text)
}
