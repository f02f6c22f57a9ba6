package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"storyforge/internal/models"
)

// Router dispatches every generation call to the one backend selected by
// configuration. Callers depend on Provider and never branch on a backend
// name; switching backends is purely a configuration change.
type Router struct {
	selected string
	backends map[string]Provider
}

var _ Provider = (*Router)(nil)

// NewRouter wires the configured backends and validates the selection.
func NewRouter(selected string, backends ...Provider) (*Router, error) {
	byName := make(map[string]Provider, len(backends))
	for _, b := range backends {
		byName[b.Name()] = b
	}
	if _, ok := byName[selected]; !ok {
		return nil, fmt.Errorf("unknown provider %q (configured backends: %d)", selected, len(byName))
	}
	log.Infof("provider router: using %q backend", selected)
	return &Router{selected: selected, backends: byName}, nil
}

// Name returns the selected backend's name.
func (r *Router) Name() string { return r.selected }

func (r *Router) Ready() error {
	return r.backends[r.selected].Ready()
}

func (r *Router) GenerateStory(ctx context.Context, req StoryRequest) (*models.Story, error) {
	return r.backends[r.selected].GenerateStory(ctx, req)
}

func (r *Router) AnalyzeReferencePhoto(ctx context.Context, req PhotoRequest) (*models.AppearanceProfile, error) {
	return r.backends[r.selected].AnalyzeReferencePhoto(ctx, req)
}

func (r *Router) GenerateImage(ctx context.Context, req ImageRequest) (*models.ImageData, error) {
	return r.backends[r.selected].GenerateImage(ctx, req)
}
