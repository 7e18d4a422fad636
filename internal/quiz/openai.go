package quiz

import (
	"context"
	"log"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/llm"
	"mediaquiz/internal/retry"
)

// Temperature used for quiz generation.
const Temperature = 0.7

// OpenAI generates quizzes with the chat completions endpoint in JSON mode.
type OpenAI struct {
	client *openai.Client
	model  string
	policy retry.Policy
}

func NewOpenAI(client *openai.Client, model string, policy retry.Policy) *OpenAI {
	return &OpenAI{client: client, model: model, policy: policy}
}

func (g *OpenAI) Generate(ctx context.Context, source string, n int) (*Quiz, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(source, n)},
		},
	}

	quiz, err := retry.Call(ctx, g.policy, func(ctx context.Context) (*Quiz, error) {
		resp, err := llm.Call(ctx, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
			return g.client.CreateChatCompletion(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, unusable("the model returned no choices")
		}
		q, err := Parse(resp.Choices[0].Message.Content, n)
		if err != nil {
			log.Printf("WARN: Discarding unusable quiz output: %v", err)
			return nil, unusable(err.Error())
		}
		return q, nil
	})
	if err != nil {
		log.Printf("ERROR: Quiz generation with %s failed: %v", g.model, err)
		return nil, llm.Failure(err, apperr.ReasonQuizFailed, "quiz generation")
	}
	log.Printf("INFO: Generated %d questions with %s", len(quiz.Questions), g.model)
	return quiz, nil
}

// unusable marks malformed model output as retryable; a new sample may parse.
func unusable(msg string) error {
	return &retry.StatusError{
		Code: http.StatusBadGateway,
		Err:  apperr.New(apperr.KindPermanentUpstream, apperr.ReasonQuizFailed, msg),
	}
}
