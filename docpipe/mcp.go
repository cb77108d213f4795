package docpipe

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/speakdown/kit"
)

// RegisterMCP registers the speakdown tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerConvertTool(srv)
	p.registerValidateTool(srv)
	p.registerDetectTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func decodeArgs[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// --- convert ---

func (p *Pipeline) registerConvertTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "speakdown_convert",
		Description: "Convert an HTML, JSON or Markdown document to SSML for a speech platform (azure, google, amazon, generic).",
		InputSchema: inputSchema(map[string]any{
			"content":  map[string]any{"type": "string", "description": "Document text"},
			"format":   map[string]any{"type": "string", "description": "auto (default), html, json or markdown"},
			"filename": map[string]any{"type": "string", "description": "Optional file name used to infer the format"},
			"platform": map[string]any{"type": "string", "description": "Target platform; defaults to the server setting"},
		}, []string{"content"}),
	}

	endpoint := p.endpoint("convert", func(ctx context.Context, req any) (any, error) {
		return p.Convert(ctx, *req.(*Request))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[Request])
}

// --- validate ---

type validateReq struct {
	SSML     string `json:"ssml"`
	Platform string `json:"platform"`
}

func (p *Pipeline) registerValidateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "speakdown_validate",
		Description: "Check that an SSML document is well formed for a speech platform.",
		InputSchema: inputSchema(map[string]any{
			"ssml":     map[string]any{"type": "string", "description": "SSML document"},
			"platform": map[string]any{"type": "string", "description": "azure, google, amazon or generic"},
		}, []string{"ssml"}),
	}

	endpoint := p.endpoint("validate", func(_ context.Context, req any) (any, error) {
		r := req.(*validateReq)
		return p.Validate(r.SSML, r.Platform)
	})
	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[validateReq])
}

// --- detect ---

type detectReq struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "speakdown_detect",
		Description: "Detect the input format and document type (technical, marketing, narrative, tutorial) of a document.",
		InputSchema: inputSchema(map[string]any{
			"content":  map[string]any{"type": "string", "description": "Document text"},
			"filename": map[string]any{"type": "string", "description": "Optional file name"},
		}, []string{"content"}),
	}

	endpoint := p.endpoint("detect", func(_ context.Context, req any) (any, error) {
		r := req.(*detectReq)
		return p.Detect(r.Content, r.Filename)
	})
	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[detectReq])
}

func (p *Pipeline) endpoint(op string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(
		kit.Logging(p.logger, op),
		kit.Timeout(p.cfg.HTTP.RequestTimeout),
	)(e)
}
