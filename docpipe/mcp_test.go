package docpipe

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "speakdown-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	pipe := newTestPipeline(t, nil)
	srv := mcp.NewServer(testMCPImpl, nil)
	pipe.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_ListTools(t *testing.T) {
	session := mcpSession(t)

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"speakdown_convert": true, "speakdown_validate": true, "speakdown_detect": true}
	for _, tool := range res.Tools {
		delete(want, tool.Name)
	}
	for name := range want {
		t.Errorf("missing tool: %s", name)
	}
}

func TestMCP_Convert(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "speakdown_convert", map[string]any{
		"content":  "# Hello\n\nWelcome to the **show**.",
		"platform": "azure",
	})

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !res.Valid || res.Platform != "azure" {
		t.Fatalf("result: valid=%v platform=%s (%s)", res.Valid, res.Platform, res.Validation)
	}
	if !strings.Contains(res.SSML, "xml:lang") {
		t.Errorf("azure ssml: %s", res.SSML)
	}
	if len(res.Elements) == 0 || len(res.Annotations) != len(res.Elements) {
		t.Errorf("elements %d annotations %d", len(res.Elements), len(res.Annotations))
	}
}

func TestMCP_Convert_Error(t *testing.T) {
	// WHAT: pipeline errors surface as tool errors, not protocol errors.
	session := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "speakdown_convert",
		Arguments: map[string]any{"content": "hi", "platform": "watson"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
}

func TestMCP_Validate(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "speakdown_validate", map[string]any{
		"ssml":     "<speak><prosody rate=\"fast\">hi</speak>",
		"platform": "generic",
	})
	var v Validation
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatal(err)
	}
	if v.Valid || !strings.Contains(v.Message, "prosody") {
		t.Fatalf("validation: %+v", v)
	}
}

func TestMCP_Detect(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "speakdown_detect", map[string]any{
		"content": "Step 1: install the tool. Step 2: follow the guide.",
	})
	var d Detection
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		t.Fatal(err)
	}
	if d.DocType != "tutorial" || d.Format != "markdown" {
		t.Fatalf("detect: %+v", d)
	}
}
