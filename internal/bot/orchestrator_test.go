package bot

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"taskhub/internal/models"
	"taskhub/internal/storage/sqlite"
)

// scriptedProvider replays a fixed sequence of model turns and records what
// it was asked.
type scriptedProvider struct {
	script []Content

	calls     int
	lastTools []FunctionDeclaration
	lastSeen  []Content
}

func (p *scriptedProvider) Generate(ctx context.Context, system string, contents []Content, tools []FunctionDeclaration) (Content, error) {
	p.lastTools = tools
	p.lastSeen = append([]Content(nil), contents...)
	if p.calls >= len(p.script) {
		return Content{Role: "model", Parts: []Part{{Text: "out of script"}}}, nil
	}
	turn := p.script[p.calls]
	p.calls++
	return turn, nil
}

func textTurn(text string) Content {
	return Content{Role: "model", Parts: []Part{{Text: text}}}
}

func callTurn(name string, args string) Content {
	return Content{Role: "model", Parts: []Part{{FunctionCall: &FunctionCall{
		Name: name,
		Args: json.RawMessage(args),
	}}}}
}

func newBotStore(t *testing.T) (*sqlite.Store, int64) {
	t.Helper()
	store, err := sqlite.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	user, err := store.CreateUser(context.Background(), "alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return store, user.ID
}

func newOrchestrator(t *testing.T, store *sqlite.Store, provider Provider, callLimit int) *Orchestrator {
	t.Helper()
	tools, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(provider, tools, nil, callLimit)
}

func TestChatPlainReply(t *testing.T) {
	store, userID := newBotStore(t)
	provider := &scriptedProvider{script: []Content{textTurn("hello there")}}
	orch := newOrchestrator(t, store, provider, 6)

	reply, convID, err := orch.Chat(context.Background(), userID, "", "hi")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hello there" {
		t.Errorf("reply = %q", reply)
	}
	if convID == "" {
		t.Error("conversation id is empty")
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
	if len(provider.lastTools) != 10 {
		t.Errorf("declared tools = %d, want 10", len(provider.lastTools))
	}
}

func TestChatConversationHistoryCarriesOver(t *testing.T) {
	store, userID := newBotStore(t)
	provider := &scriptedProvider{script: []Content{textTurn("first"), textTurn("second")}}
	orch := newOrchestrator(t, store, provider, 6)

	_, convID, err := orch.Chat(context.Background(), userID, "", "one")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	_, _, err = orch.Chat(context.Background(), userID, convID, "two")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	// Second provider call sees user "one", model "first", user "two".
	if len(provider.lastSeen) != 3 {
		t.Fatalf("history length = %d, want 3", len(provider.lastSeen))
	}
	if provider.lastSeen[0].Text() != "one" || provider.lastSeen[2].Text() != "two" {
		t.Errorf("history = %+v", provider.lastSeen)
	}
}

func TestChatConversationNotSharedAcrossUsers(t *testing.T) {
	store, alice := newBotStore(t)
	bob, err := store.CreateUser(context.Background(), "bob", "bob@example.com", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	provider := &scriptedProvider{script: []Content{textTurn("noted"), textTurn("hello bob")}}
	orch := newOrchestrator(t, store, provider, 6)

	_, aliceConv, err := orch.Chat(context.Background(), alice, "", "my plans are confidential")
	if err != nil {
		t.Fatalf("alice turn: %v", err)
	}

	_, bobConv, err := orch.Chat(context.Background(), bob.ID, aliceConv, "hi")
	if err != nil {
		t.Fatalf("bob turn: %v", err)
	}
	if bobConv == aliceConv {
		t.Error("bob was handed alice's conversation id")
	}
	for _, c := range provider.lastSeen {
		if strings.Contains(c.Text(), "confidential") {
			t.Fatal("bob's model call carried alice's history")
		}
	}
	if len(provider.lastSeen) != 1 {
		t.Errorf("bob's history length = %d, want 1", len(provider.lastSeen))
	}

	// Alice's conversation is intact and still hers.
	_, _, err = orch.Chat(context.Background(), alice, aliceConv, "still there?")
	if err != nil {
		t.Fatalf("alice follow-up: %v", err)
	}
	if provider.lastSeen[0].Text() != "my plans are confidential" {
		t.Errorf("alice history = %+v", provider.lastSeen)
	}
}

func TestChatUnknownConversationIDNotAdopted(t *testing.T) {
	store, userID := newBotStore(t)
	provider := &scriptedProvider{script: []Content{textTurn("hi")}}
	orch := newOrchestrator(t, store, provider, 6)

	_, convID, err := orch.Chat(context.Background(), userID, "made-up-id", "hello")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if convID == "made-up-id" {
		t.Error("client-supplied conversation id was adopted")
	}
	if len(provider.lastSeen) != 1 {
		t.Errorf("history length = %d, want only the new message", len(provider.lastSeen))
	}
}

func TestChatToolCallUpdatesTask(t *testing.T) {
	store, userID := newBotStore(t)
	task, err := store.CreateTask(context.Background(), userID, models.Task{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	provider := &scriptedProvider{script: []Content{
		callTurn("update_task", `{"task_id": `+strconv.FormatInt(task.ID, 10)+`, "completed": true}`),
		textTurn("Marked it done."),
	}}
	orch := newOrchestrator(t, store, provider, 6)

	reply, _, err := orch.Chat(context.Background(), userID, "", "mark buy milk as done")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Marked it done." {
		t.Errorf("reply = %q", reply)
	}

	updated, err := store.GetTask(context.Background(), userID, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !updated.Completed {
		t.Error("task was not marked completed")
	}

	// The model's second call saw the tool result.
	resp := findFunctionResponse(t, provider.lastSeen, "update_task")
	if _, ok := resp.Response["result"]; !ok {
		t.Errorf("tool response = %+v, want result key", resp.Response)
	}
}

func TestChatInvalidToolArgsFedBackAsError(t *testing.T) {
	store, userID := newBotStore(t)
	provider := &scriptedProvider{script: []Content{
		// Missing the required task_id.
		callTurn("update_task", `{"completed": true}`),
		textTurn("I could not find that task."),
	}}
	orch := newOrchestrator(t, store, provider, 6)

	reply, _, err := orch.Chat(context.Background(), userID, "", "finish it")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "I could not find that task." {
		t.Errorf("reply = %q", reply)
	}
	resp := findFunctionResponse(t, provider.lastSeen, "update_task")
	msg, ok := resp.Response["error"].(string)
	if !ok || !strings.Contains(msg, "rejected") {
		t.Errorf("tool response = %+v, want schema rejection error", resp.Response)
	}
}

func TestChatUnknownToolFedBackAsError(t *testing.T) {
	store, userID := newBotStore(t)
	provider := &scriptedProvider{script: []Content{
		callTurn("drop_database", `{}`),
		textTurn("I cannot do that."),
	}}
	orch := newOrchestrator(t, store, provider, 6)

	reply, _, err := orch.Chat(context.Background(), userID, "", "drop everything")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "I cannot do that." {
		t.Errorf("reply = %q", reply)
	}
	resp := findFunctionResponse(t, provider.lastSeen, "drop_database")
	if _, ok := resp.Response["error"]; !ok {
		t.Errorf("tool response = %+v, want error key", resp.Response)
	}
}

func TestChatCallLimitForcesSummary(t *testing.T) {
	store, userID := newBotStore(t)
	// The model keeps listing tasks and never answers.
	provider := &scriptedProvider{script: []Content{
		callTurn("list_tasks", `{}`),
		callTurn("list_tasks", `{}`),
		textTurn("Here is what I found so far."),
	}}
	orch := newOrchestrator(t, store, provider, 2)

	reply, _, err := orch.Chat(context.Background(), userID, "", "what do I have to do?")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Here is what I found so far." {
		t.Errorf("reply = %q", reply)
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want limit+1 = 3", provider.calls)
	}
	// The final call carries no tools and ends with the wrap-up instruction.
	if provider.lastTools != nil {
		t.Error("final call still offered tools")
	}
	last := provider.lastSeen[len(provider.lastSeen)-1]
	if last.Text() != limitPrompt {
		t.Errorf("final content = %q, want the wrap-up instruction", last.Text())
	}
}

func TestChatEmptyModelOutput(t *testing.T) {
	store, userID := newBotStore(t)
	provider := &scriptedProvider{script: []Content{{Role: "model"}}}
	orch := newOrchestrator(t, store, provider, 6)

	_, _, err := orch.Chat(context.Background(), userID, "", "hi")
	if err == nil {
		t.Fatal("expected error for empty model output")
	}
}

func findFunctionResponse(t *testing.T, contents []Content, name string) *FunctionResponse {
	t.Helper()
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.FunctionResponse != nil && p.FunctionResponse.Name == name {
				return p.FunctionResponse
			}
		}
	}
	t.Fatalf("no function response for %s in %+v", name, contents)
	return nil
}
