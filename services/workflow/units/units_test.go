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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Template Tests ---

func TestTemplate(t *testing.T) {
	u, err := NewTemplate("greet", "says hi", "Hello, {{.Input | trim | upper}}!")
	require.NoError(t, err)

	assert.Equal(t, "greet", u.Name())
	assert.Equal(t, "says hi", u.Description())

	out, err := u.Run(context.Background(), "  world ")
	require.NoError(t, err)
	assert.Equal(t, "Hello, WORLD!", out)
}

func TestTemplate_ParseError(t *testing.T) {
	_, err := NewTemplate("bad", "", "{{.Input")
	assert.Error(t, err)
}

func TestTemplate_UnknownField(t *testing.T) {
	u, err := NewTemplate("bad", "", "{{.Missing}}")
	require.NoError(t, err)

	_, err = u.Run(context.Background(), "x")
	assert.Error(t, err)
}

// --- Command Tests ---

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommand_PipesStdin(t *testing.T) {
	requireShell(t)
	u, err := NewCommand("upper", "", []string{"sh", "-c", "tr a-z A-Z"})
	require.NoError(t, err)

	out, err := u.Run(context.Background(), "shout\n")
	require.NoError(t, err)
	assert.Equal(t, "SHOUT", out)
}

func TestCommand_NonZeroExit(t *testing.T) {
	requireShell(t)
	u, err := NewCommand("fail", "", []string{"sh", "-c", "echo broken >&2; exit 3"})
	require.NoError(t, err)

	_, err = u.Run(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "broken")
}

func TestCommand_ContextCancel(t *testing.T) {
	requireShell(t)
	u, err := NewCommand("sleep", "", []string{"sh", "-c", "exec sleep 5"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = u.Run(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCommand_Empty(t *testing.T) {
	_, err := NewCommand("none", "", nil)
	assert.Error(t, err)
}

// --- Echo Tests ---

func TestEcho(t *testing.T) {
	out, err := NewEcho("e", "", "> ").Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "> hi", out)
}

// --- Chat Tests ---

func newChatServer(t *testing.T, reply string, status int) (*httptest.Server, *openai.ChatCompletionRequest) {
	t.Helper()
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  got.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestChat(t *testing.T) {
	srv, got := newChatServer(t, "a fine draft", http.StatusOK)

	u, err := NewChat("draft", "", "You write drafts.", ChatConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "test-key",
		Model:   "local-model",
	}, nil)
	require.NoError(t, err)

	out, err := u.Run(context.Background(), "write about goroutines")
	require.NoError(t, err)
	assert.Equal(t, "a fine draft", out)

	assert.Equal(t, "local-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "You write drafts.", got.Messages[0].Content)
	assert.Equal(t, "write about goroutines", got.Messages[1].Content)
}

func TestChat_ServerError(t *testing.T) {
	srv, _ := newChatServer(t, "", http.StatusInternalServerError)

	u, err := NewChat("draft", "", "", ChatConfig{BaseURL: srv.URL + "/v1", APIKey: "k"}, nil)
	require.NoError(t, err)

	_, err = u.Run(context.Background(), "x")
	assert.Error(t, err)
}

func TestChat_RequiresKey(t *testing.T) {
	_, err := NewChat("draft", "", "", ChatConfig{}, nil)
	assert.Error(t, err)
}

// --- Factory Tests ---

func TestFactory(t *testing.T) {
	f := &Factory{Chat: ChatConfig{APIKey: "k", Model: "default-model"}}

	tests := []struct {
		spec Spec
		want any
	}{
		{Spec{Name: "t", Kind: KindTemplate, Template: "{{.Input}}"}, &Template{}},
		{Spec{Name: "c", Kind: KindCommand, Command: []string{"cat"}}, &Command{}},
		{Spec{Name: "h", Kind: KindChat, Model: "override"}, &Chat{}},
		{Spec{Name: "e", Kind: KindEcho}, &Echo{}},
		{Spec{Name: "d"}, &Echo{}},
	}
	for _, tt := range tests {
		t.Run(tt.spec.Name, func(t *testing.T) {
			u, err := f.New(tt.spec)
			require.NoError(t, err)
			assert.IsType(t, tt.want, u)
			assert.Equal(t, tt.spec.Name, u.Name())
		})
	}

	chat, err := f.New(Spec{Name: "h", Kind: KindChat, Model: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", chat.(*Chat).model)

	_, err = f.New(Spec{Name: "x", Kind: "wasm"})
	assert.True(t, errors.Is(err, ErrUnknownKind))
}
