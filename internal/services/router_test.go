package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/internal/models"
	"storyforge/internal/retry"
)

// fakeProvider counts calls and returns canned results.
type fakeProvider struct {
	name       string
	readyErr   error
	imageErr   error
	imageCalls int
	storyCalls int
	photoCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Ready() error { return f.readyErr }

func (f *fakeProvider) GenerateStory(context.Context, StoryRequest) (*models.Story, error) {
	f.storyCalls++
	return &models.Story{Title: f.name + " story", Pages: []models.StoryPage{{PageNumber: 1, Text: "once"}}}, nil
}

func (f *fakeProvider) AnalyzeReferencePhoto(context.Context, PhotoRequest) (*models.AppearanceProfile, error) {
	f.photoCalls++
	return &models.AppearanceProfile{SubjectName: "Nora", Description: "freckles"}, nil
}

func (f *fakeProvider) GenerateImage(context.Context, ImageRequest) (*models.ImageData, error) {
	f.imageCalls++
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return &models.ImageData{B64: "aW1n", MIME: "image/png"}, nil
}

func TestNewRouter_SelectsBackendByName(t *testing.T) {
	oa := &fakeProvider{name: "openai"}
	gm := &fakeProvider{name: "gemini"}

	r, err := NewRouter("gemini", oa, gm)
	require.NoError(t, err)
	assert.Equal(t, "gemini", r.Name())

	story, err := r.GenerateStory(context.Background(), StoryRequest{SubjectName: "Nora", PageCount: 1})
	require.NoError(t, err)
	assert.Equal(t, "gemini story", story.Title)
	assert.Equal(t, 1, gm.storyCalls)
	assert.Zero(t, oa.storyCalls)
}

func TestNewRouter_UnknownProvider(t *testing.T) {
	_, err := NewRouter("dalle", &fakeProvider{name: "openai"}, &fakeProvider{name: "gemini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dalle")
}

func TestRouter_ReadyDelegates(t *testing.T) {
	broken := &fakeProvider{name: "openai", readyErr: newProviderError("openai", ErrCodeAuthentication, "no key", nil)}
	healthy := &fakeProvider{name: "gemini"}

	r, err := NewRouter("openai", broken, healthy)
	require.NoError(t, err)
	assert.Error(t, r.Ready())

	r, err = NewRouter("gemini", broken, healthy)
	require.NoError(t, err)
	assert.NoError(t, r.Ready())
}

func TestClient_RetriesTransientImageFailure(t *testing.T) {
	backend := &fakeProvider{
		name:     "openai",
		imageErr: newProviderError("openai", ErrCodeRateLimited, "slow down", nil),
	}
	r, err := NewRouter("openai", backend)
	require.NoError(t, err)

	policy := retry.NewPolicy(2, time.Millisecond, time.Millisecond)
	c := NewClient(r, policy)

	_, err = c.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeRateLimited, pe.Code)
	assert.Equal(t, 3, backend.imageCalls)
}

func TestClient_DoesNotRetryPermanentFailure(t *testing.T) {
	backend := &fakeProvider{
		name:     "openai",
		imageErr: newProviderError("openai", ErrCodeInvalidRequest, "prompt rejected", nil),
	}
	r, err := NewRouter("openai", backend)
	require.NoError(t, err)

	c := NewClient(r, retry.NewPolicy(2, time.Millisecond, time.Millisecond))

	_, err = c.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, 1, backend.imageCalls)
}

func TestClient_DefaultPolicyWhenNil(t *testing.T) {
	backend := &fakeProvider{name: "gemini"}
	r, err := NewRouter("gemini", backend)
	require.NoError(t, err)

	c := NewClient(r, nil)
	img, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "aW1n", img.B64)
	assert.Equal(t, 1, backend.imageCalls)
}
