package mcpclient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubManager serves a fixed catalog and records invocations.
type stubManager struct {
	Manager

	entries []CatalogEntry
	results map[string]*ToolResult

	invoked []string
	lastArg map[string]any
}

func (s *stubManager) Catalog(ctx context.Context) []CatalogEntry {
	return s.entries
}

func (s *stubManager) Invoke(ctx context.Context, qualifiedName string, args map[string]any) (*ToolResult, error) {
	s.invoked = append(s.invoked, qualifiedName)
	s.lastArg = args

	if result, ok := s.results[qualifiedName]; ok {
		return result, nil
	}

	return nil, ErrUnknownTool
}

func searchEntry() CatalogEntry {
	return CatalogEntry{
		QualifiedName: "docs.search",
		Owner:         "docs",
		Descriptor: &ToolDescriptor{
			Name:        "search",
			Description: "Full-text search over the docs index",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string"},
					"limit": {"type": "integer", "minimum": 1}
				},
				"required": ["query"]
			}`),
		},
	}
}

func textResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

func TestNewTool_Accessors(t *testing.T) {
	tool, err := NewTool(&stubManager{}, searchEntry())
	require.NoError(t, err)

	require.Equal(t, "search", tool.Name())
	require.Equal(t, "docs.search", tool.QualifiedName())
	require.Equal(t, "Full-text search over the docs index", tool.Description())
}

func TestNewTool_BadSchema(t *testing.T) {
	entry := searchEntry()
	entry.Descriptor.InputSchema = json.RawMessage(`{"type": 12}`)

	_, err := NewTool(&stubManager{}, entry)
	require.Error(t, err)
}

func TestTool_Validate(t *testing.T) {
	tool, err := NewTool(&stubManager{}, searchEntry())
	require.NoError(t, err)

	require.NoError(t, tool.Validate(map[string]any{"query": "routing"}))

	err = tool.Validate(map[string]any{"limit": 5})

	var verr *InvalidArgumentsError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "docs.search", verr.Tool)

	err = tool.Validate(map[string]any{"query": 7})
	require.ErrorAs(t, err, &verr)
}

func TestTool_ValidateWithoutSchema(t *testing.T) {
	entry := searchEntry()
	entry.Descriptor.InputSchema = nil

	tool, err := NewTool(&stubManager{}, entry)
	require.NoError(t, err)

	require.NoError(t, tool.Validate(nil))
	require.NoError(t, tool.Validate(map[string]any{"anything": true}))
}

func TestTool_Execute(t *testing.T) {
	mgr := &stubManager{
		results: map[string]*ToolResult{
			"docs.search": textResult("3 matches"),
		},
	}

	tool, err := NewTool(mgr, searchEntry())
	require.NoError(t, err)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "routing"})
	require.NoError(t, err)
	require.Equal(t, "3 matches", out)
	require.Equal(t, []string{"docs.search"}, mgr.invoked)
	require.Equal(t, "routing", mgr.lastArg["query"])
}

func TestTool_ExecuteRejectsInvalidArgsLocally(t *testing.T) {
	mgr := &stubManager{}

	tool, err := NewTool(mgr, searchEntry())
	require.NoError(t, err)

	_, err = tool.Execute(context.Background(), map[string]any{})

	var verr *InvalidArgumentsError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, mgr.invoked)
}

func TestTools_SkipsUncompilableSchemas(t *testing.T) {
	broken := searchEntry()
	broken.QualifiedName = "docs.broken"
	broken.Descriptor.Name = "broken"
	broken.Descriptor.InputSchema = json.RawMessage(`{"type": 12}`)

	mgr := &stubManager{entries: []CatalogEntry{broken, searchEntry()}}

	tools, err := Tools(context.Background(), mgr)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "docs.search", tools[0].QualifiedName())
}

func TestTools_AllBroken(t *testing.T) {
	broken := searchEntry()
	broken.Descriptor.InputSchema = json.RawMessage(`{"type": 12}`)

	mgr := &stubManager{entries: []CatalogEntry{broken}}

	_, err := Tools(context.Background(), mgr)
	require.Error(t, err)
}

func TestTool_FunctionDeclaration(t *testing.T) {
	tool, err := NewTool(&stubManager{}, searchEntry())
	require.NoError(t, err)

	decl := tool.FunctionDeclaration()
	require.Equal(t, "function", decl["type"])

	fn := decl["function"].(map[string]any)
	require.Equal(t, "docs.search", fn["name"])
	require.Equal(t, "Full-text search over the docs index", fn["description"])

	params := fn["parameters"].(map[string]any)
	require.Equal(t, "object", params["type"])
	require.Contains(t, params["properties"], "query")
}
