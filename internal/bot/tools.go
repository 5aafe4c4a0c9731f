package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"taskhub/internal/models"
	"taskhub/internal/storage/sqlite"
)

// ToolHandler executes a tool for the given principal. The user id comes
// from the authenticated request, never from the model.
type ToolHandler func(ctx context.Context, userID int64, args json.RawMessage) (any, error)

// Tool is one member of the closed tool set the model may invoke.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     ToolHandler

	compiled *jsonschema.Schema
}

// Registry holds the enumerated tools and their compiled schemas.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry builds the registry with the ten CRUD tools bound to the
// store.
func NewRegistry(store *sqlite.Store) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool)}
	for _, t := range crudTools(store) {
		if err := r.register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(t *Tool) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(t.Name+".json", bytes.NewReader(t.InputSchema)); err != nil {
		return fmt.Errorf("tool %s schema: %w", t.Name, err)
	}
	schema, err := compiler.Compile(t.Name + ".json")
	if err != nil {
		return fmt.Errorf("tool %s schema: %w", t.Name, err)
	}
	t.compiled = schema

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Declarations serializes the tool set for the provider call.
func (r *Registry) Declarations() []FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decls := make([]FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		decls = append(decls, FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	return decls
}

// Execute validates args against the tool's schema and runs the handler.
// Any failure comes back as an error for the caller to feed to the model as
// structured failure content.
func (r *Registry) Execute(ctx context.Context, userID int64, call FunctionCall) (any, error) {
	tool, ok := r.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}

	args := call.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return nil, fmt.Errorf("tool %s arguments are not valid JSON: %w", call.Name, err)
	}
	if err := tool.compiled.Validate(decoded); err != nil {
		return nil, fmt.Errorf("tool %s arguments rejected: %w", call.Name, err)
	}

	return tool.Handler(ctx, userID, args)
}

// --- CRUD tool set ---

type taskArgs struct {
	TaskID       int64   `json:"task_id"`
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Completed    *bool   `json:"completed"`
	Deadline     *string `json:"deadline"`
	CollectionID *int64  `json:"collection_id"`
	Offset       int     `json:"offset"`
	Limit        int     `json:"limit"`
}

type collectionArgs struct {
	CollectionID int64   `json:"collection_id"`
	Name         *string `json:"name"`
	Tasks        []int64 `json:"tasks"`
	Offset       int     `json:"offset"`
	Limit        int     `json:"limit"`
}

func crudTools(store *sqlite.Store) []*Tool {
	return []*Tool{
		{
			Name:        "create_task",
			Description: "Create a new task. Optionally assign a deadline and a collection.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {"type": "string", "description": "Task title"},
					"description": {"type": "string", "description": "Task description"},
					"deadline": {"type": "string", "description": "Deadline, RFC 3339 or YYYY-MM-DD"},
					"collection_id": {"type": "integer", "description": "Collection to place the task in"}
				},
				"required": ["title"]
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a taskArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				deadline, err := parseDeadlineArg(a.Deadline)
				if err != nil {
					return nil, err
				}
				task := models.Task{
					Title:        stringValue(a.Title),
					Description:  stringValue(a.Description),
					Deadline:     deadline,
					CollectionID: a.CollectionID,
				}
				return store.CreateTask(ctx, userID, task)
			},
		},
		{
			Name:        "get_task",
			Description: "Retrieve a task by id.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"task_id": {"type": "integer", "description": "Task id"}
				},
				"required": ["task_id"]
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a taskArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				return store.GetTask(ctx, userID, a.TaskID)
			},
		},
		{
			Name:        "list_tasks",
			Description: "List the user's tasks with their ids. Supports offset/limit pagination, a completed filter and a due-by deadline filter.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"offset": {"type": "integer", "description": "Records to skip"},
					"limit": {"type": "integer", "description": "Max records, up to 100"},
					"completed": {"type": "boolean", "description": "List completed instead of open tasks"},
					"deadline": {"type": "string", "description": "Only tasks due at or before this instant"}
				}
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a taskArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				filter := models.TaskFilter{Completed: boolValue(a.Completed)}
				due, err := parseDeadlineArg(a.Deadline)
				if err != nil {
					return nil, err
				}
				filter.DueBy = due
				return store.ListTasks(ctx, userID, filter, models.Page{Offset: a.Offset, Limit: a.Limit})
			},
		},
		{
			Name:        "update_task",
			Description: "Update a task by id. Only the provided fields change; set completed to true to mark a task done.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"task_id": {"type": "integer", "description": "Task id"},
					"title": {"type": "string", "description": "New title"},
					"description": {"type": "string", "description": "New description"},
					"completed": {"type": "boolean", "description": "Completion status"},
					"deadline": {"type": "string", "description": "New deadline, RFC 3339 or YYYY-MM-DD"},
					"collection_id": {"type": "integer", "description": "Collection to move the task into"}
				},
				"required": ["task_id"]
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a taskArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				deadline, err := parseDeadlineArg(a.Deadline)
				if err != nil {
					return nil, err
				}
				patch := models.TaskPatch{
					Title:        a.Title,
					Description:  a.Description,
					Completed:    a.Completed,
					Deadline:     deadline,
					CollectionID: a.CollectionID,
				}
				return store.UpdateTask(ctx, userID, a.TaskID, patch)
			},
		},
		{
			Name:        "delete_task",
			Description: "Delete a task by id.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"task_id": {"type": "integer", "description": "Task id"}
				},
				"required": ["task_id"]
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a taskArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				if err := store.DeleteTask(ctx, userID, a.TaskID); err != nil {
					return nil, err
				}
				return map[string]any{"id": a.TaskID, "success": true}, nil
			},
		},
		{
			Name:        "create_collection",
			Description: "Create a new collection, optionally pulling existing tasks into it by id.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Collection name"},
					"tasks": {"type": "array", "items": {"type": "integer"}, "description": "Task ids to attach"}
				},
				"required": ["name"]
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a collectionArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				return store.CreateCollection(ctx, userID, stringValue(a.Name), a.Tasks)
			},
		},
		{
			Name:        "get_collection",
			Description: "Retrieve a collection by id, including its tasks.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"collection_id": {"type": "integer", "description": "Collection id"}
				},
				"required": ["collection_id"]
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a collectionArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				return store.GetCollection(ctx, userID, a.CollectionID)
			},
		},
		{
			Name:        "list_collections",
			Description: "List the user's collections with their ids.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"offset": {"type": "integer", "description": "Records to skip"},
					"limit": {"type": "integer", "description": "Max records, up to 100"}
				}
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a collectionArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				return store.ListCollections(ctx, userID, models.Page{Offset: a.Offset, Limit: a.Limit})
			},
		},
		{
			Name:        "update_collection",
			Description: "Rename a collection by id.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"collection_id": {"type": "integer", "description": "Collection id"},
					"name": {"type": "string", "description": "New name"}
				},
				"required": ["collection_id"]
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a collectionArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				return store.UpdateCollection(ctx, userID, a.CollectionID, models.CollectionPatch{Name: a.Name})
			},
		},
		{
			Name:        "delete_collection",
			Description: "Delete a collection by id. Tasks inside it are deleted with it.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"collection_id": {"type": "integer", "description": "Collection id"}
				},
				"required": ["collection_id"]
			}`),
			Handler: func(ctx context.Context, userID int64, raw json.RawMessage) (any, error) {
				var a collectionArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
				if err := store.DeleteCollection(ctx, userID, a.CollectionID); err != nil {
					return nil, err
				}
				return map[string]any{"id": a.CollectionID, "success": true}, nil
			},
		},
	}
}

func parseDeadlineArg(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	return models.ParseDeadline(*raw)
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func boolValue(v *bool) bool {
	return v != nil && *v
}
