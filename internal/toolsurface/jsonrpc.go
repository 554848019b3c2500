package toolsurface

import (
	"context"
	"encoding/json"
)

// JSON-RPC 2.0 envelope types, grounded on the teacher's
// internal/mcp/transport.go JSONRPCRequest/JSONRPCResponse framing,
// adapted here for the server side of a bidirectional WS channel instead
// of an outbound MCP client.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []toolDescriptor `json:"tools"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolContent is the REST/MCP response wrapper shape (spec.md §4.9):
// `{ content: [{ type:"text", text: <json> }], isError }`.
type ToolContent struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// WrapResult builds a ToolContent from a tool's return value (success) or
// an error (failure); used by both the REST handler and the JSON-RPC
// tools/call handler so the two transports agree on payload shape.
func WrapResult(result any, err error) ToolContent {
	if err != nil {
		return ToolContent{
			Content: []ContentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		}
	}
	b, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return ToolContent{
			Content: []ContentBlock{{Type: "text", Text: marshalErr.Error()}},
			IsError: true,
		}
	}
	return ToolContent{Content: []ContentBlock{{Type: "text", Text: string(b)}}}
}

// HandleRPC dispatches one JSON-RPC 2.0 request against the registry's
// tools/list and tools/call methods. Unknown methods return code -32601
// per spec.md §4.9.
func (r *Registry) HandleRPC(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "tools/list":
		descriptors := make([]toolDescriptor, 0, len(r.tools))
		for _, t := range r.List() {
			descriptors = append(descriptors, toolDescriptor{
				Name:        t.Name(),
				Description: t.Description(),
				InputSchema: t.Schema(),
			})
		}
		result, _ := json.Marshal(toolsListResult{Tools: descriptors})
		resp.Result = result

	case "tools/call":
		var params toolsCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &JSONRPCError{Code: codeInvalidParams, Message: "invalid tools/call params: " + err.Error()}
			return resp
		}
		result, callErr, ok := r.Call(ctx, params.Name, params.Arguments)
		if !ok {
			resp.Error = &JSONRPCError{Code: codeMethodNotFound, Message: "unknown tool: " + params.Name}
			return resp
		}
		wrapped, _ := json.Marshal(WrapResult(result, callErr))
		resp.Result = wrapped

	default:
		resp.Error = &JSONRPCError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
	}

	return resp
}
