package toolsurface

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/codediagram/backend/internal/diagram"
	"github.com/codediagram/backend/internal/promptlib"
	"github.com/codediagram/backend/internal/provider"
)

func newTestRegistry() *Registry {
	stub := &stubProvider{id: "anthropic", reply: "```mermaid\ngraph TD\n  A --> B\n```"}
	return NewRegistry(Deps{
		Providers:    provider.NewRegistry(stub),
		Prompts:      promptlib.NewLibrary(""),
		Renderer:     diagram.New("", ""),
		DefaultModel: "m",
		ProviderID:   stub.id,
	})
}

func TestHandleRPC_ToolsList(t *testing.T) {
	reg := newTestRegistry()
	resp := reg.HandleRPC(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: float64(1), Method: "tools/list"})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var result toolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if len(result.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(result.Tools))
	}
}

func TestHandleRPC_ToolsCall(t *testing.T) {
	reg := newTestRegistry()
	params, _ := json.Marshal(toolsCallParams{
		Name:      "generate_diagram",
		Arguments: json.RawMessage(`{"prompt":"draw","diagram_type":"mermaid"}`),
	})
	resp := reg.HandleRPC(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: float64(2), Method: "tools/call", Params: params})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var wrapped ToolContent
	if err := json.Unmarshal(resp.Result, &wrapped); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if wrapped.IsError {
		t.Fatal("expected isError=false for a successful call")
	}
	if len(wrapped.Content) != 1 || wrapped.Content[0].Type != "text" {
		t.Fatalf("unexpected content shape: %+v", wrapped.Content)
	}
}

func TestHandleRPC_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	reg := newTestRegistry()
	resp := reg.HandleRPC(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: float64(3), Method: "bogus/method"})

	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found (-32601), got %+v", resp.Error)
	}
}

func TestHandleRPC_UnknownToolNameReturnsMethodNotFound(t *testing.T) {
	reg := newTestRegistry()
	params, _ := json.Marshal(toolsCallParams{Name: "not_a_real_tool", Arguments: json.RawMessage(`{}`)})
	resp := reg.HandleRPC(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: float64(4), Method: "tools/call", Params: params})

	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found (-32601) for unknown tool name, got %+v", resp.Error)
	}
}

func TestWrapResult_ErrorProducesIsErrorTrue(t *testing.T) {
	wrapped := WrapResult(nil, context.DeadlineExceeded)
	if !wrapped.IsError {
		t.Fatal("expected isError=true when err is non-nil")
	}
}
