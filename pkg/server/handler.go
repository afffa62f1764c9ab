package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/research-agent/pkg/research"
)

var (
	corsMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Content-Type", "Authorization"}
)

// ResearchRequest is the body of POST /api/research. Both fields are decoded
// loosely so type mismatches map to the documented defaults instead of a
// JSON error.
type ResearchRequest struct {
	Topic    any             `json:"topic"`
	MaxDepth json.RawMessage `json:"maxDepth"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// CORS allows any origin and answers preflight requests with 200.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              corsMethods,
		AllowHeaders:              corsHeaders,
		OptionsResponseStatusCode: http.StatusOK,
	})
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.health)
	if h.Service.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Service.Metrics.Handler()))
	}
	r.Any("/mcp", gin.WrapH(h.MCPHandler()))

	r.POST("/research", h.research)
	r.OPTIONS("/research", h.preflight)
	api := r.Group("/api")
	{
		api.POST("/research", h.research)
		api.OPTIONS("/research", h.preflight)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// preflight covers OPTIONS requests that carry no Origin header and so are
// not handled by the CORS middleware.
func (h *Handler) preflight(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", strings.Join(corsMethods, ", "))
	c.Header("Access-Control-Allow-Headers", strings.Join(corsHeaders, ", "))
	c.Status(http.StatusOK)
}

func (h *Handler) research(c *gin.Context) {
	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body"})
		return
	}

	topic, _ := req.Topic.(string)
	topic = strings.TrimSpace(topic)
	if topic == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Topic is required"})
		return
	}

	depth := parseDepth(req.MaxDepth, h.Service.DefaultDepth())
	result, err := h.Service.Research(c.Request.Context(), topic, depth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: NormalizeError(err)})
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseDepth accepts a JSON number or a numeric string, truncates fractions
// and clamps to the supported range. Anything else yields def.
func parseDepth(raw json.RawMessage, def int) int {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return def
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return def
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return def
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}

	f = math.Trunc(f)
	switch {
	case f < research.MinDepth:
		return research.MinDepth
	case f > research.MaxDepth:
		return research.MaxDepth
	}
	return int(f)
}

// DeepResearchArgs are the arguments of the deep_research MCP tool.
type DeepResearchArgs struct {
	Topic    string `json:"topic" jsonschema:"the research topic or question"`
	MaxDepth int    `json:"maxDepth,omitempty" jsonschema:"number of research rounds, 1 to 5"`
}

// MCPServer exposes the research service as a Model Context Protocol tool.
func (h *Handler) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "research-agent", Version: "1.0.0"}, nil)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "deep_research",
		Description: "Research a topic over several search, extract and analyze rounds and return a cited markdown report.",
	}, h.deepResearch)
	return srv
}

func (h *Handler) MCPHandler() http.Handler {
	srv := h.MCPServer()
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}

func (h *Handler) deepResearch(ctx context.Context, req *mcp.CallToolRequest, args DeepResearchArgs) (*mcp.CallToolResult, any, error) {
	topic := strings.TrimSpace(args.Topic)
	if topic == "" {
		return errorResult("Topic is required"), nil, nil
	}
	depth := h.Service.DefaultDepth()
	if args.MaxDepth != 0 {
		depth = research.ClampDepth(args.MaxDepth)
	}

	result, err := h.Service.Research(ctx, topic, depth)
	if err != nil {
		return errorResult(NormalizeError(err)), nil, nil
	}

	sources, err := json.MarshalIndent(result.Sources, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Report},
			&mcp.TextContent{Text: string(sources)},
		},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
