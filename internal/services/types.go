package services

import (
	"context"

	"storyforge/internal/models"
)

// StoryRequest asks a provider for a complete story structure.
type StoryRequest struct {
	SubjectName string
	Theme       string
	PageCount   int
	// Appearance seeds the consistency context when a reference photo was
	// analyzed beforehand.
	Appearance *models.AppearanceProfile
}

// PhotoRequest asks a provider to describe the subject of a reference photo.
type PhotoRequest struct {
	SubjectName string
	Data        []byte
	MIME        string
}

// ImageRequest asks a provider for one illustration. Context carries the
// appearance facts shared by every page of a job; Location names the scene
// for this page only. Photo optionally carries the subject's reference photo
// for backends whose image models accept image conditioning; backends whose
// image endpoint is text-only rely on Context, which is distilled from the
// same photo.
type ImageRequest struct {
	Prompt    string
	Location  string
	Subject   string
	Context   models.ConsistencyContext
	Photo     []byte
	PhotoMIME string
}

// Provider is the uniform contract implemented by each generative backend.
// Callers never see backend-specific request or error shapes; failures are
// surfaced as *ProviderError.
type Provider interface {
	Name() string
	// Ready reports a fatal configuration problem (typically a missing
	// credential) without performing a network call.
	Ready() error
	GenerateStory(ctx context.Context, req StoryRequest) (*models.Story, error)
	AnalyzeReferencePhoto(ctx context.Context, req PhotoRequest) (*models.AppearanceProfile, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*models.ImageData, error)
}
