// Package demo provides the sample ArticlesLive controller used by the CLI
// commands. It doubles as a reference for wiring a controller by hand.
package demo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/espalier"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

var seedArticles = []map[string]any{
	{"id": "1", "title": "Pruning for shape", "body": "Train the leader early."},
	{"id": "2", "title": "Espalier against a wall", "body": "South-facing walls hold warmth."},
	{"id": "3", "title": "Winter care", "body": "Mulch before the first frost."},
}

// NewController builds the ArticlesLive controller: mount actions for the
// list and detail pages, events for deleting and refreshing.
func NewController(views ports.ViewResolver, logger *slog.Logger, extra ...espalier.Option) (*espalier.Controller, error) {
	opts := []espalier.Option{
		espalier.MountAction("index", mountIndex),
		espalier.MountAction("show", mountShow),
		espalier.Event("delete", handleDelete),
		espalier.Event("refresh", handleRefresh),
		espalier.WithApplySession(applySession),
		espalier.WithLogger(logger),
	}
	if views != nil {
		opts = append(opts, espalier.WithViewResolver(views))
	}
	opts = append(opts, extra...)

	return espalier.New("ArticlesLive", opts...)
}

// applySession folds the caller identity into state before any action runs.
func applySession(ctx context.Context, state *domain.State, sess domain.Session) *domain.State {
	if user, ok := sess["user"]; ok {
		state = state.Assign("current_user", user)
	}
	return state
}

func mountIndex(ctx context.Context, state *domain.State, params domain.Params) (domain.Outcome, error) {
	return state.Assign("articles", seedArticles), nil
}

func mountShow(ctx context.Context, state *domain.State, params domain.Params) (domain.Outcome, error) {
	id := params.String("id")
	for _, a := range seedArticles {
		if a["id"] == id {
			return state.Assign("article", a), nil
		}
	}
	return nil, fmt.Errorf("article '%s' not found", id)
}

func handleDelete(ctx context.Context, state *domain.State, params domain.Params) (domain.Outcome, error) {
	id := params.String("id")
	current := articlesFrom(state)

	remaining := make([]map[string]any, 0, len(current))
	for _, a := range current {
		if a["id"] != id {
			remaining = append(remaining, a)
		}
	}

	// Deleting the last article sends the client back to the list page.
	if len(remaining) == 0 {
		return state.RedirectTo("/articles"), nil
	}
	return state.Assign("articles", remaining), nil
}

func handleRefresh(ctx context.Context, state *domain.State, params domain.Params) (domain.Outcome, error) {
	return state.Assign("articles", seedArticles), nil
}

// articlesFrom reads the article list regardless of whether the state came
// straight from a handler or through a JSON persistence round-trip.
func articlesFrom(state *domain.State) []map[string]any {
	raw, _ := state.Value("articles")
	switch v := raw.(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
