// Package mcpadapter exposes document status and review operations as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

const defaultActor = "mcp"

type Server struct {
	status    ports.StatusReader
	reviews   ports.ReviewSubmitter
	canceller ports.DocumentCanceller
	mcpServer *server.MCPServer
}

func NewServer(version string, status ports.StatusReader, reviews ports.ReviewSubmitter, canceller ports.DocumentCanceller) *Server {
	s := &Server{
		status:    status,
		reviews:   reviews,
		canceller: canceller,
		mcpServer: server.NewMCPServer("docflow-mcp", strings.TrimSpace(version), server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_document_status",
		mcp.WithDescription("Get the workflow status of a document. Extracted data is included only once the document is completed or failed."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document identifier")),
	), s.handleStatus)

	s.mcpServer.AddTool(mcp.NewTool("get_document_results",
		mcp.WithDescription("Get the final results of a completed or failed document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document identifier")),
	), s.handleResults)

	s.mcpServer.AddTool(mcp.NewTool("list_pending_reviews",
		mcp.WithDescription("List documents waiting for a human review decision, oldest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of documents (default 50)"), mcp.Min(1)),
	), s.handlePendingReviews)

	s.mcpServer.AddTool(mcp.NewTool("submit_review",
		mcp.WithDescription("Resolve the open human review of a document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document identifier")),
		mcp.WithString("decision", mcp.Required(), mcp.Enum("approve", "reject", "modify", "escalate"), mcp.Description("Review decision")),
		mcp.WithString("reviewer", mcp.Required(), mcp.Description("Reviewer identity")),
		mcp.WithString("review_id", mcp.Description("Open review id; guards against resolving a newer round")),
		mcp.WithString("feedback", mcp.Description("Free-text feedback")),
		mcp.WithObject("modifications", mcp.Description("Field corrections for a modify decision")),
	), s.handleSubmitReview)

	s.mcpServer.AddTool(mcp.NewTool("cancel_document",
		mcp.WithDescription("Request cancellation of an in-flight document. It fails at its next step."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document identifier")),
		mcp.WithString("actor", mcp.Description("Who requests the cancellation")),
		mcp.WithString("reason", mcp.Description("Why the document is cancelled")),
	), s.handleCancel)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.status.Status(ctx, id)
	if err != nil {
		return toolError("get status", err), nil
	}
	return jsonResult(view)
}

func (s *Server) handleResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.status.Results(ctx, id)
	if err != nil {
		return toolError("get results", err), nil
	}
	return jsonResult(view)
}

func (s *Server) handlePendingReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.status.PendingReviews(ctx, request.GetInt("limit", 0))
	if err != nil {
		return toolError("list pending reviews", err), nil
	}
	if items == nil {
		items = []domain.DocumentSummary{}
	}
	return jsonResult(map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleSubmitReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	decision, err := request.RequireString("decision")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reviewer, err := request.RequireString("reviewer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	modifications, err := parseModifications(request.GetArguments()["modifications"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state, err := s.reviews.Submit(ctx, id, domain.ReviewSubmission{
		ReviewID:      request.GetString("review_id", ""),
		Decision:      domain.ReviewDecision(decision),
		Reviewer:      reviewer,
		Feedback:      request.GetString("feedback", ""),
		Modifications: modifications,
	})
	if err != nil {
		return toolError("submit review", err), nil
	}
	return jsonResult(domain.NewStatusView(state))
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	actor := strings.TrimSpace(request.GetString("actor", ""))
	if actor == "" {
		actor = defaultActor
	}
	state, err := s.canceller.Cancel(ctx, id, actor, request.GetString("reason", ""))
	if err != nil {
		return toolError("cancel document", err), nil
	}
	return jsonResult(domain.NewStatusView(state))
}

// parseModifications accepts an object or a JSON-encoded object.
func parseModifications(raw any) (domain.Fields, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return domain.Fields(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out domain.Fields
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("modifications must be a JSON object: %w", err)
		}
		return out, nil
	default:
		return nil, errors.New("modifications must be an object")
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func toolError(op string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed (%s): %v", op, domain.ErrorCode(err), err))
}
