package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/reviewdesk/internal/app"
	"github.com/joescharf/reviewdesk/internal/export"
	"github.com/joescharf/reviewdesk/internal/models"
)

// Records looks up and edits persisted reviews by id.
type Records interface {
	Get(ctx context.Context, id string) *models.ReviewRecord
	Update(ctx context.Context, id, reply string) bool
}

// Server exposes the review controller as MCP tools.
type Server struct {
	ctrl    *app.Controller
	records Records
	version string
	now     func() time.Time
}

// NewServer creates the MCP server wrapper.
func NewServer(ctrl *app.Controller, records Records, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{ctrl: ctrl, records: records, version: version, now: time.Now}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("reviewdesk", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.analyzeTool())
	srv.AddTool(s.listHistoryTool())
	srv.AddTool(s.updateReplyTool())
	srv.AddTool(s.deleteTool())
	srv.AddTool(s.exportTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// review_analyze
func (s *Server) analyzeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("review_analyze",
		mcp.WithDescription("Analyze a customer review: classify sentiment, extract up to three key issues and draft a reply in the requested tone. The analysis is saved to history."),
		mcp.WithString("review_text", mcp.Required(), mcp.Description("The customer review")),
		mcp.WithString("tone", mcp.Description("Reply tone: Professional (default), Friendly, Witty or Apologetic")),
	)
	return tool, s.handleAnalyze
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("review_text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_text"), nil
	}
	tone := request.GetString("tone", models.DefaultTone)

	state, err := s.ctrl.Analyze(ctx, text, tone)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if state.Result == nil {
		return mcp.NewToolResultError("analysis was superseded by a newer request"), nil
	}

	return jsonResult(map[string]any{
		"id":        state.CurrentID,
		"tone":      state.Tone,
		"sentiment": state.Result.Sentiment,
		"issues":    state.Result.Issues,
		"reply":     state.EditableReply,
		"outcome":   state.Result.Outcome,
		"saved":     state.CurrentID != "",
	})
}

// review_list_history
func (s *Server) listHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("review_list_history",
		mcp.WithDescription("List saved review analyses, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default: all cached, at most 50)")),
	)
	return tool, s.handleListHistory
}

func (s *Server) handleListHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hist := s.ctrl.Refresh(ctx).History
	if limit := request.GetInt("limit", 0); limit > 0 && limit < len(hist) {
		hist = hist[:limit]
	}
	return jsonResult(hist)
}

// review_update_reply
func (s *Server) updateReplyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("review_update_reply",
		mcp.WithDescription("Replace the saved reply of a review analysis."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Review record id")),
		mcp.WithString("reply", mcp.Required(), mcp.Description("New reply text")),
	)
	return tool, s.handleUpdateReply
}

func (s *Server) handleUpdateReply(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	reply, err := request.RequireString("reply")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: reply"), nil
	}

	rec := s.records.Get(ctx, strings.TrimSpace(id))
	if rec == nil {
		return mcp.NewToolResultError(fmt.Sprintf("review not found: %s", id)), nil
	}

	if s.ctrl.Snapshot().CurrentID == rec.ID {
		s.ctrl.UpdateReply(reply)
		s.ctrl.Wait()
		if s.ctrl.Snapshot().Unsaved {
			return mcp.NewToolResultError("failed to save reply"), nil
		}
	} else if !s.records.Update(ctx, rec.ID, reply) {
		return mcp.NewToolResultError("failed to save reply"), nil
	}
	s.ctrl.Refresh(ctx)

	rec.Reply = reply
	return jsonResult(rec)
}

// review_delete
func (s *Server) deleteTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("review_delete",
		mcp.WithDescription("Delete a saved review analysis."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Review record id")),
	)
	return tool, s.handleDelete
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	id = strings.TrimSpace(id)
	if s.records.Get(ctx, id) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("review not found: %s", id)), nil
	}
	if !s.ctrl.DeleteFromHistory(ctx, id) {
		return mcp.NewToolResultError("failed to delete review"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted review %s", id)), nil
}

// review_export
func (s *Server) exportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("review_export",
		mcp.WithDescription("Render an analysis as plain text (sentiment, key points, reply). Exports the current analysis unless an id is given."),
		mcp.WithString("id", mcp.Description("Review record id to export instead of the current analysis")),
		mcp.WithString("dir", mcp.Description("If set, also write the export file into this directory")),
	)
	return tool, s.handleExport
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var doc export.Document
	if id := strings.TrimSpace(request.GetString("id", "")); id != "" {
		rec := s.records.Get(ctx, id)
		if rec == nil {
			return mcp.NewToolResultError(fmt.Sprintf("review not found: %s", id)), nil
		}
		doc = export.New(rec.Sentiment, rec.Issues, rec.Reply, s.now())
	} else {
		var err error
		doc, err = s.ctrl.Export()
		if errors.Is(err, app.ErrNothingToExport) {
			return mcp.NewToolResultError("no analysis to export; run review_analyze or pass an id"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	if dir := request.GetString("dir", ""); dir != "" {
		path, err := export.Write(dir, doc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to write export: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Wrote %s\n\n%s", path, doc.Content)), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}
