package toolserver

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/canvas"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/ledger"
)

// DrawInput is the draw tool input.
type DrawInput struct {
	Commands string `json:"commands" jsonschema:"drawing instructions, one call per line, e.g. clear() or fr(10,10,20,20)"`
}

// DrawResult is the draw tool structured output.
type DrawResult struct {
	CommandID        string       `json:"commandId" jsonschema:"ledger id of the accepted command"`
	Status           string       `json:"status" jsonschema:"delivered or queued"`
	Delivered        int          `json:"delivered" jsonschema:"clients that received the command"`
	ConnectedClients int          `json:"connectedClients" jsonschema:"live canvas clients at submission"`
	Stats            ledger.Stats `json:"stats" jsonschema:"ledger totals per state"`
}

type StatusInput struct{}

func DrawTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "draw",
		Description: "Sends drawing instructions to every connected canvas. Undelivered instructions queue until a canvas connects.",
	}
}

func StatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "canvas_status",
		Description: "Reports connected canvas clients, active sessions, and command ledger totals.",
	}
}

func (s *Server) drawHandler(ctx context.Context, req *mcp.CallToolRequest, input DrawInput) (*mcp.CallToolResult, DrawResult, error) {
	sessionID := ""
	if req != nil {
		sessionID = s.sessionKey(req.Session)
	}
	res, err := s.svc.Submit(ctx, input.Commands, sessionID)
	if err != nil {
		var verr *canvas.ValidationError
		if errors.As(err, &verr) {
			return errorResult("Invalid drawing commands:\n" + strings.Join(verr.Errors, "\n")), DrawResult{}, nil
		}
		return nil, DrawResult{}, err
	}
	out := DrawResult{
		CommandID:        res.CommandID,
		Status:           res.Status,
		Delivered:        res.Delivered,
		ConnectedClients: res.ConnectedClients,
		Stats:            res.Stats,
	}
	return textResult(res.Summary()), out, nil
}

func (s *Server) statusHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, canvas.Status, error) {
	st := s.svc.Status()
	return nil, st, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	res := textResult(text)
	res.IsError = true
	return res
}
