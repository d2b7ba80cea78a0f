package mcp

import (
	"github.com/Aman-CERP/catalogsearch/internal/assistant"
	"github.com/Aman-CERP/catalogsearch/internal/search"
	"github.com/Aman-CERP/catalogsearch/internal/telemetry"
)

// Tool names.
const (
	ToolSearchProducts    = "search_products"
	ToolRecommendProducts = "recommend_products"
	ToolAnswerQuestion    = "answer_question"
	ToolIndexStatus       = "index_status"
)

// SearchProductsInput defines the input schema for search_products.
type SearchProductsInput struct {
	Query string `json:"query" jsonschema:"free-text product query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default from config"`
}

// RecommendProductsInput defines the input schema for recommend_products.
type RecommendProductsInput struct {
	ProductID   int64    `json:"product_id" jsonschema:"id of the product to find neighbours for"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default from config"`
	ExcludeSelf *bool    `json:"exclude_self,omitempty" jsonschema:"drop the source product, default from config"`
	Diversify   *bool    `json:"diversify,omitempty" jsonschema:"prefer unseen categories, default from config"`
	MMR         bool     `json:"mmr,omitempty" jsonschema:"use maximal marginal relevance instead of greedy diversity"`
	Lambda      *float64 `json:"lambda,omitempty" jsonschema:"MMR relevance weight between 0 and 1"`
}

// ProductsOutput is the output of the product tools.
type ProductsOutput struct {
	Version string          `json:"version" jsonschema:"product index version the results come from"`
	Cached  bool            `json:"cached" jsonschema:"true when served from the result cache"`
	Results []search.Result `json:"results" jsonschema:"ranked products"`
}

// AnswerQuestionInput defines the input schema for answer_question.
type AnswerQuestionInput struct {
	Question  string   `json:"question" jsonschema:"help question in natural language"`
	K         int      `json:"k,omitempty" jsonschema:"number of chunks to retrieve"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum top score needed to answer"`
}

// AnswerOutput is the output of answer_question.
type AnswerOutput struct {
	TraceID string             `json:"trace_id" jsonschema:"unique id of this answer"`
	Version string             `json:"version" jsonschema:"corpus index version"`
	Answer  string             `json:"answer" jsonschema:"extractive answer or the refusal message"`
	Refused bool               `json:"refused" jsonschema:"true when nothing relevant was found"`
	Sources []assistant.Source `json:"sources" jsonschema:"retrieved chunks, best first"`
}

// IndexStatusInput defines the input schema for index_status (no parameters).
type IndexStatusInput struct{}

// IndexStatus describes one persisted index.
type IndexStatus struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Count      int    `json:"count"`
	Dim        int    `json:"dim"`
	Vectorizer string `json:"vectorizer,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Built      bool   `json:"built"`
}

// IndexStatusOutput defines the output schema for index_status.
type IndexStatusOutput struct {
	Indexes     []IndexStatus      `json:"indexes"`
	Buster      string             `json:"buster"`
	CachedItems int                `json:"cached_items"`
	Metrics     telemetry.Snapshot `json:"metrics"`
}
