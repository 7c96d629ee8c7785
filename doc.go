// Package mcpclient provides a Go client for MCP (Model Context Protocol)
// servers over streamable HTTP.
//
// The package connects to one or more MCP servers, aggregates their tools
// into a single catalog namespaced by server label, and routes tool
// invocations to the owning server. Connections self-heal: a dropped server
// reconnects in the background with exponential backoff while the others
// keep serving.
//
// # Basic Usage
//
// For a fleet of servers described in a YAML file:
//
//	ctx := context.Background()
//
//	mgr, err := mcpclient.NewManagerFromConfig("servers.yaml",
//	    mcpclient.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close()
//
//	report, err := mgr.ConnectAll(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for label, status := range report {
//	    fmt.Printf("%s: %s\n", label, status.State)
//	}
//
//	result, err := mgr.Invoke(ctx, "docs.search", map[string]any{"query": "routing"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Text())
//
// # Tool Adapters
//
// Tools wraps catalog entries with local argument validation against each
// tool's JSON schema, ready to hand to an LLM function-calling loop:
//
//	tools, err := mcpclient.Tools(ctx, mgr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, tool := range tools {
//	    decl := tool.FunctionDeclaration()
//	    // register decl with the model...
//	}
//
//	out, err := tools[0].Execute(ctx, map[string]any{"query": "routing"})
//
// # Error Handling
//
// The package provides typed errors for different failure scenarios:
//
//	result, err := mgr.Invoke(ctx, "docs.search", args)
//	if err != nil {
//	    if toolErr, ok := errors.AsType[*mcpclient.ToolError](err); ok {
//	        log.Printf("server rejected the call: %s", toolErr.Message)
//	    }
//	    if errors.Is(err, mcpclient.ErrUnknownTool) {
//	        log.Printf("no such tool")
//	    }
//	}
package mcpclient
