package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/httputil"
	"github.com/torvix/backend/internal/models"
)

const (
	integrationID    = "openai"
	defaultChatLimit = 300
	maxOutputTokens  = 8192
)

var (
	errEmptyResponse   = apperr.New(apperr.ErrUpstreamBadResponse, "OpenAI returned an empty response")
	errInvalidEstimate = apperr.New(apperr.ErrUpstreamBadResponse, "OpenAI returned an invalid meal estimate")
)

const foodPhotoPrompt = `You are a nutritionist. Identify the dish in the photo and estimate its
total weight in grams, total macros and the ingredients with per-100g macros.
Use realistic portion sizes. Write dish and ingredient names in %s.`

var (
	macrosSchema = jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"calories":     {Type: jsonschema.Number},
			"protein":      {Type: jsonschema.Number},
			"fat":          {Type: jsonschema.Number},
			"fatSaturated": {Type: jsonschema.Number},
			"carbs":        {Type: jsonschema.Number},
			"fiber":        {Type: jsonschema.Number},
			"sugar":        {Type: jsonschema.Number},
		},
		Required:             []string{"calories", "protein", "fat", "fatSaturated", "carbs", "fiber", "sugar"},
		AdditionalProperties: false,
	}

	ingredientMacrosSchema = jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"calories": {Type: jsonschema.Number},
			"protein":  {Type: jsonschema.Number},
			"fat":      {Type: jsonschema.Number},
			"carbs":    {Type: jsonschema.Number},
			"fiber":    {Type: jsonschema.Number},
		},
		Required:             []string{"calories", "protein", "fat", "carbs", "fiber"},
		AdditionalProperties: false,
	}

	ingredientSchema = jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name":          {Type: jsonschema.String},
			"weightPerUnit": {Type: jsonschema.Number, Description: "grams per unit"},
			"quantity":      {Type: jsonschema.Number},
			"macrosPer100g": ingredientMacrosSchema,
		},
		Required:             []string{"name", "weightPerUnit", "quantity", "macrosPer100g"},
		AdditionalProperties: false,
	}

	mealSchema = jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"dishName":    {Type: jsonschema.String},
			"totalWeight": {Type: jsonschema.Number, Description: "grams"},
			"totalMacros": macrosSchema,
			"ingredients": {Type: jsonschema.Array, Items: &ingredientSchema},
		},
		Required:             []string{"dishName", "totalWeight", "totalMacros", "ingredients"},
		AdditionalProperties: false,
	}
)

// =============================================================================
// Service
// =============================================================================

// Service talks to an OpenAI-compatible chat completions API.
type Service struct {
	client    *openai.Client
	apiKey    string
	model     string
	maxTokens int
	observer  httputil.UpstreamObserver
}

func NewService(cfg *config.Config, observer httputil.UpstreamObserver) *Service {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}
	timeout := cfg.OpenAITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	maxTokens := cfg.OpenAIMaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1200
	}
	if observer == nil {
		observer = nopObserver{}
	}

	return &Service{
		client:    openai.NewClientWithConfig(oc),
		apiKey:    cfg.OpenAIAPIKey,
		model:     cfg.OpenAIModel,
		maxTokens: maxTokens,
		observer:  observer,
	}
}

type nopObserver struct{}

func (nopObserver) ObserveUpstream(string, string, time.Duration) {}

func (s *Service) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := s.assertCredentials(); err != nil {
		return nil, err
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != nil {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: *req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	limit := defaultChatLimit
	if req.MaxOutputTokens != nil {
		limit = *req.MaxOutputTokens
	}
	completion := openai.ChatCompletionRequest{
		Model:               s.pickModel(req.Model),
		Messages:            messages,
		MaxCompletionTokens: limit,
	}
	if req.Temperature != nil {
		completion.Temperature = wireTemperature(*req.Temperature)
	}

	resp, err := s.complete(ctx, completion)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, errEmptyResponse
	}

	model := resp.Model
	if model == "" {
		model = completion.Model
	}
	return &ChatResponse{Model: model, Text: text}, nil
}

// EstimateMeal asks the model for a structured meal estimate of the image,
// which must already be a data URI.
func (s *Service) EstimateMeal(ctx context.Context, imageDataURI, language string, model *string) (*MealEstimate, error) {
	if err := s.assertCredentials(); err != nil {
		return nil, err
	}
	languageName, ok := languages[language]
	if !ok {
		return nil, apperr.InvalidInput("Unsupported language code")
	}

	completion := openai.ChatCompletionRequest{
		Model: s.pickModel(model),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(foodPhotoPrompt, languageName)},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: "Estimate this meal."},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    imageDataURI,
					Detail: openai.ImageURLDetailAuto,
				}},
			}},
		},
		MaxCompletionTokens: s.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "meal_estimate",
				Schema: &mealSchema,
				Strict: true,
			},
		},
	}

	resp, err := s.complete(ctx, completion)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, errEmptyResponse
	}

	var estimate MealEstimate
	if err := json.Unmarshal([]byte(content), &estimate); err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstreamBadResponse, errInvalidEstimate.Message, err)
	}
	if estimate.Ingredients == nil {
		estimate.Ingredients = []models.Ingredient{}
	}
	return &estimate, nil
}

// complete runs the request. When the answer was cut off by the output token
// budget it is retried once with the budget doubled.
func (s *Service) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := s.createCompletion(ctx, req)
	if err != nil {
		return resp, err
	}
	if len(resp.Choices) > 0 && resp.Choices[0].FinishReason == openai.FinishReasonLength {
		req.MaxCompletionTokens = min(req.MaxCompletionTokens*2, maxOutputTokens)
		resp, err = s.createCompletion(ctx, req)
		if err != nil {
			return resp, err
		}
	}
	if len(resp.Choices) == 0 {
		return resp, errEmptyResponse
	}
	return resp, nil
}

func (s *Service) createCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		mapped := mapError(err)
		s.observer.ObserveUpstream(integrationID, outcomeOf(mapped), time.Since(start))
		return resp, mapped
	}
	s.observer.ObserveUpstream(integrationID, "ok", time.Since(start))
	return resp, nil
}

// wireTemperature keeps an explicit zero on the wire. The client library
// drops a zero temperature as unset, so it is sent as the smallest positive
// float32 instead.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func (s *Service) assertCredentials() error {
	if s.apiKey == "" {
		return apperr.Internal("Missing OPENAI_API_KEY", httputil.ErrMissingCredentials)
	}
	return nil
}

func (s *Service) pickModel(requested *string) string {
	if requested != nil && *requested != "" {
		return *requested
	}
	return s.model
}

// mapError translates client library errors into the API error taxonomy.
func mapError(err error) error {
	if httputil.IsTimeout(err) {
		return apperr.Wrap(apperr.ErrUpstreamTimeout, "OpenAI request timed out", err)
	}

	status := 0
	message := ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, message = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return apperr.Wrap(apperr.ErrUpstreamUnavailable, "Cannot reach OpenAI API", err)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Wrap(apperr.ErrUpstreamBadResponse, "OpenAI authentication failed", err)
	case status == http.StatusTooManyRequests:
		e := apperr.Wrap(apperr.ErrUpstreamBadResponse, "OpenAI rate limit exceeded", err)
		e.Status = http.StatusTooManyRequests
		return e
	case status >= 400 && status < 500:
		if message == "" {
			message = "OpenAI rejected the request"
		}
		e := apperr.Wrap(apperr.ErrUpstreamBadResponse, message, err)
		e.Status = status
		return e
	default:
		return apperr.Wrap(apperr.ErrUpstreamBadResponse, "OpenAI API request failed", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
