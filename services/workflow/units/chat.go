// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package units

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// DefaultChatModel is used when neither the factory nor the unit names a
// model.
const DefaultChatModel = "gpt-4o-mini"

// ChatConfig configures the OpenAI-compatible endpoint.
type ChatConfig struct {
	// BaseURL overrides the API root, e.g. a local Ollama or vLLM
	// server's /v1.
	BaseURL string
	APIKey  string
	Model   string
}

// Chat sends the input as the user message of a chat completion.
type Chat struct {
	name         string
	description  string
	systemPrompt string
	model        string
	client       *openai.Client
	logger       *slog.Logger
}

// NewChat builds a chat unit. An API key is required unless BaseURL
// points at a server that does not check it; pass any placeholder then.
func NewChat(name, description, systemPrompt string, cfg ChatConfig, logger *slog.Logger) (*Chat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("unit %q: chat requires an API key", name)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if systemPrompt == "" {
		systemPrompt = "You are a helpful assistant."
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Chat{
		name:         name,
		description:  description,
		systemPrompt: systemPrompt,
		model:        cfg.Model,
		client:       openai.NewClientWithConfig(clientCfg),
		logger:       logger,
	}, nil
}

func (c *Chat) Name() string        { return c.name }
func (c *Chat) Description() string { return c.description }

func (c *Chat) Run(ctx context.Context, input string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	c.logger.Debug("chat completion",
		slog.String("unit", c.name),
		slog.String("model", c.model),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, nil
}
