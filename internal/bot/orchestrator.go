// Package bot orchestrates chat turns: it forwards the conversation to the
// language model, executes the tool calls the model requests against the
// authenticated user's data, and feeds results back until the model
// produces a plain reply or the per-message call budget runs out.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/apperr"
)

// Orchestrator drives the tool-calling loop for chat turns. Calls within a
// turn are sequential; independent conversations run in parallel.
type Orchestrator struct {
	provider  Provider
	tools     *Registry
	convs     *conversationStore
	logger    *slog.Logger
	callLimit int
	now       func() time.Time
}

// New builds an orchestrator. callLimit caps provider calls per message.
func New(provider Provider, tools *Registry, logger *slog.Logger, callLimit int) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if callLimit <= 0 {
		callLimit = 6
	}
	return &Orchestrator{
		provider:  provider,
		tools:     tools,
		convs:     newConversationStore(),
		logger:    logger,
		callLimit: callLimit,
		now:       time.Now,
	}
}

// Chat runs one conversation turn for the authenticated user and returns
// the model's reply plus the conversation id for follow-ups.
func (o *Orchestrator) Chat(ctx context.Context, userID int64, conversationID, message string) (string, string, error) {
	convID, contents := o.convs.get(userID, conversationID)
	contents = append(contents, Content{Role: "user", Parts: []Part{{Text: message}}})

	system := systemPrompt(o.now())
	decls := o.tools.Declarations()

	var reply string
	for calls := 0; ; {
		if calls >= o.callLimit {
			// Budget spent: one final call without tools to summarize.
			contents = append(contents, Content{Role: "user", Parts: []Part{{Text: limitPrompt}}})
			final, err := o.provider.Generate(ctx, system, contents, nil)
			if err != nil {
				return "", "", err
			}
			contents = append(contents, final)
			reply = final.Text()
			break
		}

		turn, err := o.provider.Generate(ctx, system, contents, decls)
		if err != nil {
			return "", "", err
		}
		calls++
		contents = append(contents, turn)

		toolCalls := turn.FunctionCalls()
		if len(toolCalls) == 0 {
			reply = turn.Text()
			break
		}

		results := Content{Role: "user"}
		for _, call := range toolCalls {
			results.Parts = append(results.Parts, Part{FunctionResponse: o.execute(ctx, userID, call)})
		}
		contents = append(contents, results)
	}

	if reply == "" {
		return "", "", apperr.E(apperr.Unavailable, "language model produced no reply")
	}

	o.convs.put(userID, convID, contents)
	return reply, convID, nil
}

// execute runs one tool call. Errors become structured failure content for
// the model to explain; they are never surfaced raw to the end user.
func (o *Orchestrator) execute(ctx context.Context, userID int64, call FunctionCall) *FunctionResponse {
	o.logger.Info("executing tool", slog.String("tool", call.Name))

	result, err := o.tools.Execute(ctx, userID, call)
	if err != nil {
		o.logger.Info("tool failed", slog.String("tool", call.Name), slog.String("error", err.Error()))
		return &FunctionResponse{
			Name:     call.Name,
			Response: map[string]any{"error": err.Error()},
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return &FunctionResponse{
			Name:     call.Name,
			Response: map[string]any{"error": fmt.Sprintf("encode result: %v", err)},
		}
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		decoded = string(payload)
	}
	return &FunctionResponse{
		Name:     call.Name,
		Response: map[string]any{"result": decoded},
	}
}
