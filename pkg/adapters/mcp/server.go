package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/espalier"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DispatchResponse is the structured result of mount and dispatch tools.
type DispatchResponse struct {
	Disposition string        `json:"disposition" jsonschema_description:"Outcome of the pipeline run: continue, no_further_action or redirect"`
	Target      string        `json:"target,omitempty" jsonschema_description:"Redirect target when disposition is redirect"`
	State       *domain.State `json:"state,omitempty" jsonschema_description:"Session state after the run"`
}

// Server wraps a controller and its session manager as an MCP Server.
type Server struct {
	ctrl      *espalier.Controller
	sessions  *session.Manager
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(ctrl *espalier.Controller, sessions *session.Manager) *Server {
	s := &Server{
		ctrl:      ctrl,
		sessions:  sessions,
		mcpServer: server.NewMCPServer("espalier-mcp", strings.TrimSpace(espalier.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fmt.Println("\nShutdown signal received, shutting down server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: mount_session
	mountTool := mcp.NewTool("mount_session",
		mcp.WithDescription("Mount a session by running a mount action. Creates or replaces the session state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Identifier of the session to mount")),
		mcp.WithString("action", mcp.Required(), mcp.Description("Name of the registered mount action")),
		mcp.WithString("params", mcp.Description("JSON object of action parameters (optional)")),
		mcp.WithString("session", mcp.Description("JSON object of ambient session data, e.g. the current user (optional)")),
		mcp.WithOutputSchema[DispatchResponse](),
	)
	s.mcpServer.AddTool(mountTool, mcp.NewStructuredToolHandler(s.handleMount))

	// TOOL: dispatch_event
	dispatchTool := mcp.NewTool("dispatch_event",
		mcp.WithDescription("Dispatch an event to a mounted session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Identifier of the session")),
		mcp.WithString("event", mcp.Required(), mcp.Description("Name of the registered event handler")),
		mcp.WithString("params", mcp.Description("JSON object of event parameters (optional)")),
		mcp.WithOutputSchema[DispatchResponse](),
	)
	s.mcpServer.AddTool(dispatchTool, mcp.NewStructuredToolHandler(s.handleDispatch))

	// TOOL: get_session
	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Read the current state of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Identifier of the session")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")
		state, err := s.sessions.Load(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(state)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: delete_session
	s.mcpServer.AddTool(mcp.NewTool("delete_session",
		mcp.WithDescription("Delete a session and its state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Identifier of the session")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
		}
		return mcp.NewToolResultText("deleted"), nil
	})

	// TOOL: list_sessions
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the identifiers of active sessions."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.sessions.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleMount(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DispatchResponse, error) {
	sessionID, _ := args["session_id"].(string)
	action, _ := args["action"].(string)

	params := domain.Params{}
	if paramsStr, ok := args["params"].(string); ok {
		_ = json.Unmarshal([]byte(paramsStr), &params)
	}
	sess := domain.Session{}
	if sessStr, ok := args["session"].(string); ok {
		_ = json.Unmarshal([]byte(sessStr), &sess)
	}

	env, err := s.sessions.Mount(ctx, sessionID, s.ctrl, action, params, sess)
	if err != nil {
		slog.Warn("MCP Mount failed", "error", err, "session_id", sessionID)
		return DispatchResponse{}, fmt.Errorf("mount failed: %w", err)
	}

	return toResponse(env), nil
}

func (s *Server) handleDispatch(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DispatchResponse, error) {
	sessionID, _ := args["session_id"].(string)
	event, _ := args["event"].(string)

	params := domain.Params{}
	if paramsStr, ok := args["params"].(string); ok {
		_ = json.Unmarshal([]byte(paramsStr), &params)
	}

	env, err := s.sessions.Dispatch(ctx, sessionID, s.ctrl, event, params)
	if err != nil {
		slog.Warn("MCP Dispatch failed", "error", err, "session_id", sessionID)
		return DispatchResponse{}, fmt.Errorf("dispatch failed: %w", err)
	}

	return toResponse(env), nil
}

func toResponse(env domain.Envelope) DispatchResponse {
	return DispatchResponse{
		Disposition: string(env.Disposition),
		Target:      env.Target,
		State:       env.State,
	}
}

func (s *Server) registerResources() {
	// EXPOSE: espalier://controller
	s.mcpServer.AddResource(mcp.NewResource("espalier://controller", "Controller Registration",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		info := map[string]any{
			"name":    s.ctrl.Name(),
			"actions": s.ctrl.Actions(),
			"events":  s.ctrl.Events(),
		}
		jsonBytes, err := json.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal controller info: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "espalier://controller",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
