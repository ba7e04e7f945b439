// Package relation derives related cards and backlinks from the directed
// relatedCardIds edges. Nothing is cached; every call scans the collection.
package relation

import "github.com/starford/mdmemo/internal/models"

// Node is a card in the relation graph.
type Node struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Status models.Status `json:"status"`
}

// Link is a directed edge from a card to one it lists as related.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the whole relation graph with dangling edges removed.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// RelatedOf resolves card's related ids against all, in the card's order.
// Ids that no longer resolve are dropped.
func RelatedOf(card models.Card, all []models.Card) []models.Card {
	byID := index(all)
	out := []models.Card{}
	for _, id := range card.RelatedCardIDs {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// BacklinksOf returns every other card whose related ids include id,
// in collection order.
func BacklinksOf(id string, all []models.Card) []models.Card {
	out := []models.Card{}
	for _, c := range all {
		if c.ID == id {
			continue
		}
		for _, rid := range c.RelatedCardIDs {
			if rid == id {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// CleanIDs dedupes ids, dropping empty entries and self-references.
// Existence is not checked here; readers filter dangling ids.
func CleanIDs(self string, ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" || id == self {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// BuildGraph returns a node per card and a link per resolvable edge.
func BuildGraph(all []models.Card) Graph {
	byID := index(all)
	g := Graph{Nodes: make([]Node, 0, len(all)), Links: []Link{}}
	for _, c := range all {
		g.Nodes = append(g.Nodes, Node{ID: c.ID, Title: c.Title, Status: c.Status})
		for _, rid := range c.RelatedCardIDs {
			if _, ok := byID[rid]; ok {
				g.Links = append(g.Links, Link{Source: c.ID, Target: rid})
			}
		}
	}
	return g
}

func index(all []models.Card) map[string]models.Card {
	m := make(map[string]models.Card, len(all))
	for _, c := range all {
		m[c.ID] = c
	}
	return m
}
