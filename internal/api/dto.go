package api

import (
	"github.com/starford/mdmemo/internal/models"
)

// CreateCardRequest is the body of POST /api/cards.
type CreateCardRequest struct {
	Title          string   `json:"title" example:"Goroutines" validate:"required,max=200"`
	Content        string   `json:"content" example:"# Goroutines\nLightweight threads."`
	Tags           []string `json:"tags" validate:"omitempty,dive,max=64"`
	Status         string   `json:"status" validate:"omitempty,oneof=memo output"`
	RelatedCardIDs []string `json:"relatedCardIds"`
}

func (r CreateCardRequest) input() models.CardInput {
	return models.CardInput{
		Title:          r.Title,
		Content:        r.Content,
		Tags:           r.Tags,
		Status:         models.Status(r.Status),
		RelatedCardIDs: r.RelatedCardIDs,
	}
}

// UpdateCardRequest is the body of PATCH /api/cards/{id}. Absent fields are
// left unchanged.
type UpdateCardRequest struct {
	Title          *string   `json:"title" validate:"omitempty,max=200"`
	Content        *string   `json:"content"`
	Tags           *[]string `json:"tags" validate:"omitempty,dive,max=64"`
	Status         *string   `json:"status" validate:"omitempty,oneof=memo output"`
	RelatedCardIDs *[]string `json:"relatedCardIds"`
	EaseFactor     *float64  `json:"easeFactor"`
	Interval       *int      `json:"interval"`
}

func (r UpdateCardRequest) patch() models.CardPatch {
	p := models.CardPatch{
		Title:          r.Title,
		Content:        r.Content,
		Tags:           r.Tags,
		RelatedCardIDs: r.RelatedCardIDs,
		EaseFactor:     r.EaseFactor,
		Interval:       r.Interval,
	}
	if r.Status != nil {
		s := models.Status(*r.Status)
		p.Status = &s
	}
	return p
}

// ReviewRequest is the body of POST /api/cards/{id}/review.
type ReviewRequest struct {
	Grade *int `json:"grade" example:"4" validate:"required"`
}

// CheckAnswerRequest is the body of POST /api/quiz/{id}/check.
type CheckAnswerRequest struct {
	Answer string `json:"answer" example:"goroutines"`
}

// CheckAnswerResponse reports a quiz attempt.
type CheckAnswerResponse struct {
	Correct bool        `json:"correct"`
	Answer  string      `json:"answer"`
	Card    models.Card `json:"card"`
}

// CardListResponse wraps a query result.
type CardListResponse struct {
	Cards []models.Card `json:"cards"`
	Total int           `json:"total"`
}

// MarkdownResponse carries a card rendered to HTML.
type MarkdownResponse struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}
