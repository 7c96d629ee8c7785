package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/hivedev/mcp-client-go/internal/errors"
)

// Tool adapts one catalog entry for LLM function calling. Arguments are
// validated against the tool's input schema locally, so malformed calls
// fail fast without a network round trip.
type Tool struct {
	name          string
	description   string
	qualifiedName string
	rawSchema     json.RawMessage
	resolved      *jsonschema.Resolved
	mgr           Manager
}

// NewTool wraps a catalog entry. The input schema is compiled once here;
// a tool whose schema does not compile is rejected.
func NewTool(mgr Manager, entry CatalogEntry) (*Tool, error) {
	t := &Tool{
		name:          entry.Descriptor.Name,
		description:   entry.Descriptor.Description,
		qualifiedName: entry.QualifiedName,
		rawSchema:     entry.Descriptor.InputSchema,
		mgr:           mgr,
	}

	if len(t.rawSchema) > 0 {
		var schema jsonschema.Schema
		if err := json.Unmarshal(t.rawSchema, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: parse input schema: %w", entry.QualifiedName, err)
		}

		resolved, err := schema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("tool %s: resolve input schema: %w", entry.QualifiedName, err)
		}

		t.resolved = resolved
	}

	return t, nil
}

// Tools wraps the manager's entire catalog. Tools with uncompilable
// schemas are skipped rather than failing the batch; an error is returned
// only when every entry failed.
func Tools(ctx context.Context, mgr Manager) ([]*Tool, error) {
	entries := mgr.Catalog(ctx)

	var (
		tools    []*Tool
		firstErr error
	)

	for _, entry := range entries {
		tool, err := NewTool(mgr, entry)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		tools = append(tools, tool)
	}

	if len(tools) == 0 && firstErr != nil {
		return nil, firstErr
	}

	return tools, nil
}

// Name returns the tool's server-local name.
func (t *Tool) Name() string { return t.name }

// Description returns the server-provided description.
func (t *Tool) Description() string { return t.description }

// QualifiedName returns the catalog name, "<label>.<tool>".
func (t *Tool) QualifiedName() string { return t.qualifiedName }

// Validate checks arguments against the tool's input schema without
// invoking it. Tools without a schema accept anything.
func (t *Tool) Validate(args map[string]any) error {
	if t.resolved == nil {
		return nil
	}

	if args == nil {
		args = map[string]any{}
	}

	if err := t.resolved.Validate(args); err != nil {
		return &errors.InvalidArgumentsError{Tool: t.qualifiedName, Err: err}
	}

	return nil
}

// Call validates the arguments and invokes the tool, returning the full
// structured result.
func (t *Tool) Call(ctx context.Context, args map[string]any) (*ToolResult, error) {
	if err := t.Validate(args); err != nil {
		return nil, err
	}

	return t.mgr.Invoke(ctx, t.qualifiedName, args)
}

// Execute validates the arguments, invokes the tool, and flattens the
// result to text. This is the convenience path for function-calling loops
// that only consume text.
func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.Call(ctx, args)
	if err != nil {
		return "", err
	}

	return result.Text(), nil
}

// FunctionDeclaration renders the tool in the function-call format most
// LLM APIs accept: name, description, and a JSON schema for parameters.
// The qualified name is used so declarations from different servers never
// collide.
func (t *Tool) FunctionDeclaration() map[string]any {
	params := map[string]any{"type": "object"}

	if len(t.rawSchema) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(t.rawSchema, &parsed); err == nil {
			params = parsed
		}
	}

	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.qualifiedName,
			"description": t.description,
			"parameters":  params,
		},
	}
}
