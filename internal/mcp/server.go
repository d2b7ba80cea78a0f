package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/catalogsearch/internal/assistant"
	"github.com/Aman-CERP/catalogsearch/internal/cache"
	"github.com/Aman-CERP/catalogsearch/internal/config"
	"github.com/Aman-CERP/catalogsearch/internal/search"
	"github.com/Aman-CERP/catalogsearch/internal/store"
	"github.com/Aman-CERP/catalogsearch/internal/telemetry"
	"github.com/Aman-CERP/catalogsearch/pkg/version"
)

// MaxLimit caps every limit a client may request.
const MaxLimit = 50

// ProductEngine answers product queries.
type ProductEngine interface {
	Search(ctx context.Context, query string, k int) ([]search.Result, error)
	Recommend(ctx context.Context, productID int64, opts search.RecommendOptions) ([]search.Result, error)
	RecommendMMR(ctx context.Context, productID int64, k int, lambda float64) ([]search.Result, error)
	Version(ctx context.Context) string
}

// Answerer answers help questions.
type Answerer interface {
	Answer(ctx context.Context, question string, k int, threshold float64) (*assistant.Answer, error)
}

// IndexInfo reports on one persisted index.
type IndexInfo interface {
	Name() string
	Manifest(ctx context.Context) (*store.Manifest, error)
}

// Deps are the collaborators a Server needs. Metrics may be nil.
type Deps struct {
	Products  ProductEngine
	Assistant Answerer
	Indexes   []IndexInfo
	Buster    cache.Buster
	Metrics   *telemetry.Metrics
}

// Server is the MCP server for catalogsearch.
type Server struct {
	mcp     *mcp.Server
	deps    Deps
	config  *config.Config
	results *cache.ResultCache[[]search.Result]
	logger  *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        ToolSearchProducts,
		Description: "Full-text product search over the catalog. Returns active, in-stock products ranked by TF-IDF cosine similarity with the features that matched.",
	},
	{
		Name:        ToolRecommendProducts,
		Description: "Content-based recommendations for a product: similar items, optionally diversified across categories (greedy) or by maximal marginal relevance.",
	},
	{
		Name:        ToolAnswerQuestion,
		Description: "Answers a help question extractively from the documentation corpus, or refuses when nothing relevant is found. Sources list the chunks used.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Reports index versions, document counts, the cache buster and latency metrics.",
	},
}

// NewServer creates a new MCP server. cfg may be nil for defaults.
func NewServer(deps Deps, cfg *config.Config) (*Server, error) {
	if deps.Products == nil {
		return nil, fmt.Errorf("product engine is required")
	}
	if deps.Assistant == nil {
		return nil, fmt.Errorf("assistant is required")
	}
	if deps.Buster == nil {
		deps.Buster = cache.NewMemoryBuster()
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		deps:    deps,
		config:  cfg,
		results: cache.NewResultCache[[]search.Result](cfg.Cache.Size),
		logger:  slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "catalogsearch",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	s.registerMetricsResource()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with JSON-style arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearchProducts:
		var in SearchProductsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.SearchProducts(ctx, in)
	case ToolRecommendProducts:
		var in RecommendProductsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.RecommendProducts(ctx, in)
	case ToolAnswerQuestion:
		var in AnswerQuestionInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.AnswerQuestion(ctx, in)
	case ToolIndexStatus:
		return s.IndexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, into any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, into); err != nil {
		return NewInvalidParamsError(err.Error())
	}
	return nil
}

// SearchProducts runs a cached product search.
func (s *Server) SearchProducts(ctx context.Context, in SearchProductsInput) (*ProductsOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	limit := clampLimit(in.Limit, s.config.Search.DefaultLimit)

	return s.cachedProducts(ctx, "search", []string{query, strconv.Itoa(limit)}, func() ([]search.Result, error) {
		return s.deps.Products.Search(ctx, query, limit)
	})
}

// RecommendProducts returns cached recommendations for one product.
func (s *Server) RecommendProducts(ctx context.Context, in RecommendProductsInput) (*ProductsOutput, error) {
	if in.ProductID <= 0 {
		return nil, NewInvalidParamsError("product_id must be a positive integer")
	}
	limit := clampLimit(in.Limit, s.config.Search.DefaultLimit)
	id := strconv.FormatInt(in.ProductID, 10)

	if in.MMR {
		lambda := s.config.Search.MMRLambda
		if in.Lambda != nil {
			lambda = *in.Lambda
		}
		if lambda < 0 || lambda > 1 {
			return nil, NewInvalidParamsError("lambda must be between 0 and 1")
		}
		args := []string{id, strconv.Itoa(limit), strconv.FormatFloat(lambda, 'g', -1, 64)}
		return s.cachedProducts(ctx, "recommend_mmr", args, func() ([]search.Result, error) {
			return s.deps.Products.RecommendMMR(ctx, in.ProductID, limit, lambda)
		})
	}

	opts := search.RecommendOptions{
		K:           limit,
		ExcludeSelf: boolOr(in.ExcludeSelf, s.config.Search.ExcludeSelf),
		Diversify:   boolOr(in.Diversify, s.config.Search.Diversify),
	}
	args := []string{id, strconv.Itoa(limit), strconv.FormatBool(opts.ExcludeSelf), strconv.FormatBool(opts.Diversify)}
	return s.cachedProducts(ctx, "recommend", args, func() ([]search.Result, error) {
		return s.deps.Products.Recommend(ctx, in.ProductID, opts)
	})
}

// cachedProducts serves from the result cache keyed by index version and
// buster, so a rebuild or a document mutation misses naturally.
func (s *Server) cachedProducts(ctx context.Context, kind string, args []string, compute func() ([]search.Result, error)) (*ProductsOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	ver := s.deps.Products.Version(ctx)
	key := cache.Key(kind, ver, cache.CurrentValue(ctx, s.deps.Buster), args...)

	results, hit, err := s.results.GetOrCompute(key, compute)
	if err != nil {
		s.logger.Error("tool failed",
			slog.String("request_id", requestID),
			slog.String("kind", kind),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if hit {
		s.deps.Metrics.Incr("cache_hits", 1)
	} else {
		s.deps.Metrics.Incr("cache_misses", 1)
	}
	s.logger.Info("tool completed",
		slog.String("request_id", requestID),
		slog.String("kind", kind),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("cached", hit),
		slog.Int("result_count", len(results)))

	return &ProductsOutput{Version: ver, Cached: hit, Results: results}, nil
}

// AnswerQuestion answers from the help corpus. Answers are never cached
// since each one carries its own trace id.
func (s *Server) AnswerQuestion(ctx context.Context, in AnswerQuestionInput) (*AnswerOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, NewInvalidParamsError("question cannot be empty or whitespace only")
	}
	k := clampLimit(in.K, s.config.Assistant.Limit)
	threshold := s.config.Assistant.Threshold
	if in.Threshold != nil {
		threshold = *in.Threshold
	}

	ans, err := s.deps.Assistant.Answer(ctx, question, k, threshold)
	if err != nil {
		return nil, MapError(err)
	}
	return &AnswerOutput{
		TraceID: ans.TraceID,
		Version: ans.Version,
		Answer:  ans.Answer,
		Refused: ans.Refused(),
		Sources: ans.Sources,
	}, nil
}

// IndexStatus reports manifests, the buster and metrics. Missing indexes are
// listed with Built false and version "0".
func (s *Server) IndexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	out := &IndexStatusOutput{
		Indexes:     make([]IndexStatus, 0, len(s.deps.Indexes)),
		Buster:      cache.CurrentValue(ctx, s.deps.Buster),
		CachedItems: s.results.Len(),
		Metrics:     s.deps.Metrics.Snapshot(),
	}
	for _, idx := range s.deps.Indexes {
		status := IndexStatus{Name: idx.Name(), Version: store.DefaultVersion}
		m, err := idx.Manifest(ctx)
		if err != nil {
			s.logger.Warn("manifest_unreadable",
				slog.String("name", idx.Name()),
				slog.String("error", err.Error()))
		}
		if m != nil {
			status.Built = true
			status.Version = m.Version
			status.Count = m.Count
			status.Dim = m.Dim
			status.Vectorizer = m.Vectorizer
			status.Timestamp = m.Timestamp
		}
		out.Indexes = append(out.Indexes, status)
	}
	return out, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSearchProducts, Description: tools[0].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in SearchProductsInput) (*mcp.CallToolResult, *ProductsOutput, error) {
			out, err := s.SearchProducts(ctx, in)
			return nil, out, err
		})
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolRecommendProducts, Description: tools[1].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in RecommendProductsInput) (*mcp.CallToolResult, *ProductsOutput, error) {
			out, err := s.RecommendProducts(ctx, in)
			return nil, out, err
		})
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolAnswerQuestion, Description: tools[2].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in AnswerQuestionInput) (*mcp.CallToolResult, *AnswerOutput, error) {
			out, err := s.AnswerQuestion(ctx, in)
			return nil, out, err
		})
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexStatus, Description: tools[3].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (*mcp.CallToolResult, *IndexStatusOutput, error) {
			out, err := s.IndexStatus(ctx)
			return nil, out, err
		})

	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// Serve runs the server on stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() == nil {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

// clampLimit applies def for non-positive values and caps at MaxLimit.
func clampLimit(v, def int) int {
	if v <= 0 {
		v = def
	}
	return max(1, min(v, MaxLimit))
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// generateRequestID creates a short id for log correlation.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
