// internal/gpt/client.go
package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nutrisync/internal/models"

	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

var ErrNoFoods = errors.New("no foods recognised")

// chatCompleter is the part of *openai.Client the analyzer uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	client chatCompleter
	model  string
}

func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
	}
}

func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

const systemPrompt = `You are a nutritionist. Estimate the nutrition of the meal the user describes.
Answer with a JSON object of the form:
{"foods":[{"food_name":string,"calories":number,
"macronutrients":{"protein":number,"carbohydrates":number,"fat":number,"fiber":number,"sugar":number},
"micronutrients":{"<name>":number}}]}
List each distinct food separately. Macronutrients are grams for the described portion.
Micronutrient names must be among: %s. Omit micronutrients you cannot estimate.`

// AnalyzeText estimates the foods in a free-text meal description.
func (c *Client) AnalyzeText(ctx context.Context, description string) ([]models.NutritionData, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.New("empty meal description")
	}
	return c.analyze(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: description,
	})
}

// AnalyzePhoto estimates the foods visible at imageURL. hint is an optional
// caption from the user.
func (c *Client) AnalyzePhoto(ctx context.Context, imageURL, hint string) ([]models.NutritionData, error) {
	if imageURL == "" {
		return nil, errors.New("empty image url")
	}
	text := "Estimate the nutrition of the meal in this photo."
	if hint = strings.TrimSpace(hint); hint != "" {
		text += " The user adds: " + hint
	}
	return c.analyze(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: text},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: imageURL, Detail: openai.ImageURLDetailAuto},
			},
		},
	})
}

func (c *Client) analyze(ctx context.Context, user openai.ChatCompletionMessage) ([]models.NutritionData, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(systemPrompt, micronutrientNames()),
			},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   1200,
		Temperature: 0.2,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("food analysis request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from GPT API")
	}
	return ParseAnalysis(resp.Choices[0].Message.Content)
}

type analysis struct {
	Foods []models.NutritionInput `json:"foods"`
}

// ParseAnalysis decodes a model answer. Calories and every macronutrient
// are required for each food; unknown micronutrients are dropped.
func ParseAnalysis(content string) ([]models.NutritionData, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var a analysis
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if len(a.Foods) == 0 {
		return nil, ErrNoFoods
	}
	return models.ToNutritionList(a.Foods)
}

func micronutrientNames() string {
	names := make([]string, len(models.AllMicronutrients))
	for i, n := range models.AllMicronutrients {
		names[i] = string(n)
	}
	return strings.Join(names, ", ")
}
