package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/orq/internal/agent"
	agentopenai "github.com/slok/orq/internal/agent/openai"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/openai"
)

func completionResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestAgentChooseAction(t *testing.T) {
	tests := map[string]struct {
		modelContent string
		handler      http.HandlerFunc
		expDecision  agent.Decision
		expErr       bool
	}{
		"a valid JSON decision should be returned": {
			modelContent: `{"action": "move_right", "reason": "target is on the right"}`,
			expDecision: agent.Decision{
				Action: model.ActionMoveRight,
				Reason: "target is on the right",
			},
		},
		"an uppercase action should be normalized": {
			modelContent: `{"action": "MOVE_LEFT", "reason": "retry the other side"}`,
			expDecision: agent.Decision{
				Action: model.ActionMoveLeft,
				Reason: "retry the other side",
			},
		},
		"a repairable almost-JSON response should be accepted": {
			modelContent: `{"action": "move_right", "reason": "missing brace"`,
			expDecision: agent.Decision{
				Action: model.ActionMoveRight,
				Reason: "missing brace",
			},
		},
		"a missing reason should get a default one": {
			modelContent: `{"action": "move_right"}`,
			expDecision: agent.Decision{
				Action: model.ActionMoveRight,
				Reason: "no reason provided",
			},
		},
		"an out of vocabulary action should fail": {
			modelContent: `{"action": "move_up", "reason": "hallucinated"}`,
			expErr:       true,
		},
		"a non JSON response should fail": {
			modelContent: `I think you should move right.`,
			expErr:       true,
		},
		"a server error should fail": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			handler := test.handler
			if handler == nil {
				handler = func(w http.ResponseWriter, r *http.Request) {
					fmt.Fprint(w, completionResponse(test.modelContent))
				}
			}
			server := httptest.NewServer(handler)
			t.Cleanup(server.Close)

			client, err := openai.NewClient(openai.ClientConfig{
				BaseURL: server.URL,
				Model:   "test-model",
			})
			require.NoError(t, err)

			a, err := agentopenai.NewAgent(agentopenai.AgentConfig{Client: client})
			require.NoError(t, err)

			decision, err := a.ChooseAction(context.Background(), agent.ActionRequest{
				Subtask: model.Subtask{
					Name:            "move_right_cross_line",
					Instruction:     "Move the arm to the right across the line.",
					SuccessCriteria: "Marker right of the line.",
					MaxAttempts:     3,
				},
				AttemptIndex: 1,
				Params:       model.Params{Target: "right", Speed: 0.35, ChunkDuration: 350 * time.Millisecond},
			})

			if test.expErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expDecision, decision)
			}
		})
	}
}

func TestAgentSendsHistoryWindow(t *testing.T) {
	var gotUserPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 2)
		require.NoError(t, json.Unmarshal([]byte(body.Messages[1].Content[0].Text), &gotUserPayload))

		fmt.Fprint(w, completionResponse(`{"action": "move_right", "reason": "ok"}`))
	}))
	t.Cleanup(server.Close)

	client, err := openai.NewClient(openai.ClientConfig{BaseURL: server.URL, Model: "test-model"})
	require.NoError(t, err)
	a, err := agentopenai.NewAgent(agentopenai.AgentConfig{Client: client})
	require.NoError(t, err)

	// 6 previous attempts, only the last 4 should be sent.
	history := make([]model.Attempt, 0, 6)
	for i := 1; i <= 6; i++ {
		history = append(history, model.Attempt{Index: i, Action: model.ActionMoveRight})
	}

	_, err = a.ChooseAction(context.Background(), agent.ActionRequest{
		Subtask:      model.Subtask{Name: "st", Instruction: "i", SuccessCriteria: "c", MaxAttempts: 10},
		AttemptIndex: 7,
		Params:       model.Params{Target: "right", Speed: 0.35, ChunkDuration: 350 * time.Millisecond},
		History:      history,
	})
	require.NoError(t, err)

	recent, ok := gotUserPayload["recent_history"].([]any)
	require.True(t, ok)
	assert.Len(t, recent, 4)
	first := recent[0].(map[string]any)
	assert.Equal(t, float64(3), first["attempt_index"])
}
