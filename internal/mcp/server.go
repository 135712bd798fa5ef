package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/lawrag/internal/orchestrator"
	"github.com/Aman-CERP/lawrag/internal/search"
	"github.com/Aman-CERP/lawrag/pkg/version"
)

// Tool names.
const (
	ToolAnswer    = "answer"
	ToolSearchLaw = "search_law"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

// Answerer runs the full answer workflow.
type Answerer interface {
	Answer(ctx context.Context, query string) (*orchestrator.Result, error)
}

// Retriever runs hybrid retrieval for a single query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (*search.Retrieval, error)
}

// Server is the MCP server for lawrag.
// It bridges AI clients with the answer workflow and the statute index.
type Server struct {
	mcp       *mcp.Server
	answerer  Answerer
	retriever Retriever
	logger    *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name: ToolAnswer,
		Description: "Answer a Chinese legal question from the statute corpus. Retrieves provisions, " +
			"grades them with a quality gate and consults web search when local evidence is weak. " +
			"Always returns an answer; check outcome and degradations.",
	},
	{
		Name:        ToolSearchLaw,
		Description: "Search statute provisions with hybrid keyword and semantic retrieval. Use for citations such as 《刑法》第二百六十四条 or topics such as 离婚条件.",
	},
}

// NewServer creates a new MCP server.
func NewServer(answerer Answerer, retriever Retriever) (*Server, error) {
	if answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}

	s := &Server{
		answerer:  answerer,
		retriever: retriever,
		logger:    slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "lawrag",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "lawrag", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with loosely typed arguments and returns
// markdown.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	switch name {
	case ToolAnswer:
		res, err := s.answer(ctx, query)
		if err != nil {
			return "", err
		}
		return FormatAnswer(res), nil
	case ToolSearchLaw:
		limit := 0
		if l, ok := args["limit"].(float64); ok {
			limit = int(l)
		}
		r, limit, err := s.searchLaw(ctx, query, limit)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(query, r, limit), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

func (s *Server) answer(ctx context.Context, query string) (*orchestrator.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	start := time.Now()
	res, err := s.answerer.Answer(ctx, query)
	if err != nil {
		s.logger.Warn("mcp_answer_rejected",
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	s.logger.Info("mcp_answer_completed",
		slog.String("run_id", res.RunID),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (s *Server) searchLaw(ctx context.Context, query string, limit int) (*search.Retrieval, int, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	limit = clampLimit(limit, defaultSearchLimit, 1, maxSearchLimit)

	r, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		s.logger.Warn("mcp_search_failed", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	return r, limit, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpAnswerHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpSearchLawHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// mcpAnswerHandler is the MCP SDK handler for the answer tool.
func (s *Server) mcpAnswerHandler(ctx context.Context, _ *mcp.CallToolRequest, input AnswerInput) (
	*mcp.CallToolResult,
	AnswerOutput,
	error,
) {
	res, err := s.answer(ctx, input.Query)
	if err != nil {
		return nil, AnswerOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatAnswer(res)}},
	}, ToAnswerOutput(res), nil
}

// mcpSearchLawHandler is the MCP SDK handler for the search_law tool.
func (s *Server) mcpSearchLawHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchLawInput) (
	*mcp.CallToolResult,
	SearchLawOutput,
	error,
) {
	r, limit, err := s.searchLaw(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, SearchLawOutput{}, err
	}

	hits := validHits(r.Hits, limit)
	out := SearchLawOutput{
		QueryType:    string(r.Profile.Type),
		Results:      make([]LawResultOutput, 0, len(hits)),
		Degradations: r.Degradations,
	}
	for _, h := range hits {
		out.Results = append(out.Results, ToLawResultOutput(h))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(input.Query, r, limit)}},
	}, out, nil
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
