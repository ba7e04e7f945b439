package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/starford/mdmemo/internal/auth"
	"github.com/starford/mdmemo/internal/cardstore"
	"github.com/starford/mdmemo/internal/checksum"
	"github.com/starford/mdmemo/internal/markdown"
	"github.com/starford/mdmemo/internal/models"
	"github.com/starford/mdmemo/internal/query"
	"github.com/starford/mdmemo/internal/quiz"
	"github.com/starford/mdmemo/internal/scheduler"
)

// Handler holds API route handlers.
type Handler struct {
	store    *cardstore.Store
	validate *validator.Validate
}

// NewHandler creates a new Handler.
func NewHandler(store *cardstore.Store) *Handler {
	return &Handler{store: store, validate: newValidator()}
}

// etag is a strong validator over the card's JSON form.
func etag(c models.Card) string {
	return checksum.ETag(c)
}

func (h *Handler) card(w http.ResponseWriter, r *http.Request) (models.Card, bool) {
	c, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	}
	return c, ok
}

// ListCards handles GET /api/cards.
//
//	@Summary		List cards with search, tag filter and sort
//	@Tags			cards
//	@Produce		json
//	@Param			search	query		string		false	"Case-insensitive text in title or content"
//	@Param			tag		query		[]string	false	"Tags; a card matches if it has any"
//	@Param			sort	query		string		false	"Sort field"	Enums(title, createdAt, updatedAt, reviewCount)
//	@Param			order	query		string		false	"Sort order"	Enums(asc, desc)
//	@Success		200		{object}	CardListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards [get]
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := query.Options{
		Search: q.Get("search"),
		Tags:   queryTags(q["tag"]),
		SortBy: query.SortField(q.Get("sort")),
		Order:  query.Order(q.Get("order")),
	}
	if err := opts.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	cards := h.store.List(opts)
	writeJSON(w, http.StatusOK, CardListResponse{Cards: cards, Total: len(cards)})
}

// CreateCard handles POST /api/cards.
//
//	@Summary		Create a card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCardRequest	true	"Card to create"
//	@Success		201		{object}	models.Card
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards [post]
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.store.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, "create card", err)
		return
	}
	w.Header().Set("ETag", etag(c))
	writeJSON(w, http.StatusCreated, c)
}

// GetCard handles GET /api/cards/{id}.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	c, ok := h.card(w, r)
	if !ok {
		return
	}
	tag := etag(c)
	if match := r.Header.Get("If-None-Match"); match != "" && match == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", tag)
	writeJSON(w, http.StatusOK, c)
}

// UpdateCard handles PATCH /api/cards/{id}.
//
// An If-Match header must equal the card's current ETag, otherwise the
// update is refused with 409.
//
//	@Summary		Partially update a card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Card id"
//	@Param			If-Match	header		string				false	"ETag from a previous read"
//	@Param			body		body		UpdateCardRequest	true	"Fields to change"
//	@Success		200			{object}	models.Card
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{id} [patch]
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	current, ok := h.card(w, r)
	if !ok {
		return
	}
	if match := r.Header.Get("If-Match"); match != "" && match != etag(current) {
		writeJSON(w, http.StatusConflict, errorBody("card was modified"))
		return
	}
	var req UpdateCardRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.store.Update(r.Context(), current.ID, req.patch())
	if err != nil {
		writeError(w, "update card", err)
		return
	}
	w.Header().Set("ETag", etag(c))
	writeJSON(w, http.StatusOK, c)
}

// DeleteCard handles DELETE /api/cards/{id}. Deleting an unknown id is not
// an error.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// ReviewCard handles POST /api/cards/{id}/review.
//
//	@Summary		Grade a review and reschedule the card
//	@Tags			review
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Card id"
//	@Param			body	body		ReviewRequest	true	"Grade: 0 forgot, 3 hard, 4 good, 5 easy"
//	@Success		200		{object}	models.Card
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{id}/review [post]
func (h *Handler) ReviewCard(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.store.Review(r.Context(), chi.URLParam(r, "id"), scheduler.Grade(*req.Grade))
	if err != nil {
		writeError(w, "review card", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// MarkReviewed handles POST /api/cards/{id}/reviewed.
func (h *Handler) MarkReviewed(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.MarkReviewed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "mark reviewed", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Related handles GET /api/cards/{id}/related.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	cards, ok := h.store.Related(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, CardListResponse{Cards: cards, Total: len(cards)})
}

// Backlinks handles GET /api/cards/{id}/backlinks.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	cards, ok := h.store.Backlinks(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, CardListResponse{Cards: cards, Total: len(cards)})
}

// ExportMarkdown handles GET /api/cards/{id}/markdown.
func (h *Handler) ExportMarkdown(w http.ResponseWriter, r *http.Request) {
	c, ok := h.card(w, r)
	if !ok {
		return
	}
	data, err := markdown.Export(c)
	if err != nil {
		writeError(w, "export markdown", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// RenderHTML handles GET /api/cards/{id}/html.
func (h *Handler) RenderHTML(w http.ResponseWriter, r *http.Request) {
	c, ok := h.card(w, r)
	if !ok {
		return
	}
	html, err := markdown.Render(c.Content)
	if err != nil {
		writeError(w, "render markdown", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkdownResponse{ID: c.ID, HTML: html})
}

// Tags handles GET /api/tags.
func (h *Handler) Tags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tags": h.store.AllTags()})
}

// Due handles GET /api/due.
func (h *Handler) Due(w http.ResponseWriter, _ *http.Request) {
	cards := h.store.Due()
	writeJSON(w, http.StatusOK, CardListResponse{Cards: cards, Total: len(cards)})
}

// RandomQuestion handles GET /api/quiz/random?mode=title|content.
func (h *Handler) RandomQuestion(w http.ResponseWriter, r *http.Request) {
	mode, err := quiz.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "mode must be title or content", Field: "mode"})
		return
	}
	c, ok := h.store.Random()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no cards"))
		return
	}
	writeJSON(w, http.StatusOK, quiz.Ask(c, mode))
}

// CheckAnswer handles POST /api/quiz/{id}/check. Every attempt counts as a
// review, right or wrong.
func (h *Handler) CheckAnswer(w http.ResponseWriter, r *http.Request) {
	var req CheckAnswerRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.store.MarkReviewed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "check answer", err)
		return
	}
	writeJSON(w, http.StatusOK, CheckAnswerResponse{
		Correct: quiz.Check(req.Answer, c.Title),
		Answer:  c.Title,
		Card:    c,
	})
}

// Reveal handles POST /api/quiz/{id}/reveal.
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.MarkReviewed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "reveal", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the card relation graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	relation.Graph
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Graph())
}

// Activity handles GET /api/activity.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	log, err := h.store.Activity(r.Context())
	if err != nil {
		writeError(w, "activity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": log})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats(r.Context()))
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("not signed in"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// queryTags splits comma-separated tag parameters, so ?tag=a,b and
// ?tag=a&tag=b mean the same thing.
func queryTags(values []string) []string {
	var out []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
