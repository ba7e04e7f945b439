// Package mcpserver exposes the card store to LLM clients as MCP tools over
// stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mdmemo/internal/apperr"
	"github.com/starford/mdmemo/internal/cardstore"
	"github.com/starford/mdmemo/internal/markdown"
	"github.com/starford/mdmemo/internal/models"
	"github.com/starford/mdmemo/internal/query"
	"github.com/starford/mdmemo/internal/scheduler"
)

const (
	serverName    = "mdmemo"
	serverVersion = "1.0.0"
	contractURI   = "mdmemo://card-format"
	maxSearchHits = 50
)

// Server wraps the MCP server with card tools.
type Server struct {
	mcp   *server.MCPServer
	store *cardstore.Store
}

// New creates an MCP server with all card tools registered.
func New(store *cardstore.Store) *Server {
	s := &Server{store: store}

	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_cards",
		mcp.WithDescription("Search cards by text in title or content, optionally filtered by tags. "+
			"Returns a JSON list of card summaries."),
		mcp.WithString("query", mcp.Description("Case-insensitive search text; empty matches every card")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Cards matching any of these tags")),
		mcp.WithString("sort", mcp.Enum("title", "createdAt", "updatedAt", "reviewCount"), mcp.Description("Sort field")),
		mcp.WithString("order", mcp.Enum("asc", "desc"), mcp.Description("Sort order")),
	), s.searchCards)

	s.mcp.AddTool(mcp.NewTool("read_card",
		mcp.WithDescription("Read a card as Markdown with YAML frontmatter."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
	), s.readCard)

	s.mcp.AddTool(mcp.NewTool("create_card",
		mcp.WithDescription("Create a new card. The body should follow the card format contract; "+
			"read it first via get_card_contract or the "+contractURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Card title, the term being learned")),
		mcp.WithString("content", mcp.Description("Markdown body")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags")),
		mcp.WithString("status", mcp.Enum("memo", "output"), mcp.Description("memo while learning, output once mastered")),
	), s.createCard)

	s.mcp.AddTool(mcp.NewTool("review_card",
		mcp.WithDescription("Record a graded review and reschedule the card with SM-2. "+
			"Grades: 0 forgot, 3 hard, 4 good, 5 easy."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
		mcp.WithNumber("grade", mcp.Required(), mcp.Description("One of 0, 3, 4, 5")),
	), s.reviewCard)

	s.mcp.AddTool(mcp.NewTool("due_cards",
		mcp.WithDescription("List cards due for review by the end of today."),
	), s.dueCards)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all cards that list the given card as related."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Card id to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag in use, one per line."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("get_card_contract",
		mcp.WithDescription("Returns the card format contract. Call this before creating cards."),
	), s.getCardContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Card Format Contract",
			mcp.WithResourceDescription("How card titles, tags and Markdown bodies are written."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCardFormatResource,
	)

	return s
}

// ServeStdio serves MCP on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// cardSummary is the compact form returned by list-style tools.
type cardSummary struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Tags           []string   `json:"tags"`
	Status         string     `json:"status"`
	ReviewCount    int        `json:"reviewCount"`
	NextReviewDate *time.Time `json:"nextReviewDate,omitempty"`
}

func summarize(cards []models.Card) []cardSummary {
	out := make([]cardSummary, 0, len(cards))
	for _, c := range cards {
		out = append(out, cardSummary{
			ID:             c.ID,
			Title:          c.Title,
			Tags:           c.Tags,
			Status:         string(c.Status),
			ReviewCount:    c.ReviewCount,
			NextReviewDate: c.NextReviewDate,
		})
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// storeError turns a store error into a tool error message.
func storeError(id string, err error) *mcp.CallToolResult {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return mcp.NewToolResultError(fmt.Sprintf("invalid %s: %s", ve.Field, ve.Message))
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) searchCards(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := query.Options{
		Search: req.GetString("query", ""),
		Tags:   req.GetStringSlice("tags", nil),
		SortBy: query.SortField(req.GetString("sort", "")),
		Order:  query.Order(req.GetString("order", "")),
	}
	if err := opts.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cards := s.store.List(opts)
	if len(cards) > maxSearchHits {
		cards = cards[:maxSearchHits]
	}
	return jsonResult(summarize(cards))
}

func (s *Server) readCard(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, ok := s.store.Get(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	data, err := markdown.Export(c)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.store.Create(ctx, models.CardInput{
		Title:   title,
		Content: req.GetString("content", ""),
		Tags:    req.GetStringSlice("tags", nil),
		Status:  models.Status(req.GetString("status", "")),
	})
	if err != nil {
		return storeError("", err), nil
	}
	return jsonResult(c)
}

func (s *Server) reviewCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	grade, err := req.RequireInt("grade")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.store.Review(ctx, id, scheduler.Grade(grade))
	if err != nil {
		return storeError(id, err), nil
	}
	return jsonResult(c)
}

func (s *Server) dueCards(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	due := s.store.Due()
	if len(due) == 0 {
		return mcp.NewToolResultText("no cards due"), nil
	}
	return jsonResult(summarize(due))
}

func (s *Server) getBacklinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cards, ok := s.store.Backlinks(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if len(cards) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, 0, len(cards))
	for _, c := range cards {
		lines = append(lines, c.ID+"\t"+c.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listTags(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags := s.store.AllTags()
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags"), nil
	}
	return mcp.NewToolResultText(strings.Join(tags, "\n")), nil
}

func (s *Server) getCardContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CardFormatContract), nil
}

func (s *Server) readCardFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     CardFormatContract,
		},
	}, nil
}
