package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-deepseek/deepseek"
	"github.com/go-deepseek/deepseek/request"
)

const deepseekDefaultModel = "deepseek-chat"

type DeepSeek struct {
	client deepseek.Client
}

func NewDeepSeek(apiKey string) (*DeepSeek, error) {
	if apiKey == "" {
		return nil, errors.New("DeepSeek API key is required")
	}
	client, err := deepseek.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create DeepSeek client: %w", err)
	}
	return &DeepSeek{client: client}, nil
}

func (d *DeepSeek) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]*request.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, &request.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, &request.Message{Role: m.Role, Content: m.Content})
	}

	model := req.Model
	if model == "" {
		model = deepseekDefaultModel
	}
	var temp *float32
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		temp = &t
	}

	resp, err := d.client.CallChatCompletionsChat(ctx, &request.ChatCompletionsRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temp,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("DeepSeek API request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("DeepSeek returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (d *DeepSeek) Name() string { return "deepseek" }
