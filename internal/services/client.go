package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"storyforge/internal/costtracker"
	"storyforge/internal/models"
	"storyforge/internal/retry"
)

// Client is the retry-wrapped generation facade the rest of the system calls.
// Each operation goes through the provider router under the retry policy with
// the classifier for its call site.
type Client struct {
	provider Provider
	policy   *retry.Policy
	usage    costtracker.Tracker
}

func NewClient(provider Provider, policy *retry.Policy) *Client {
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	return &Client{provider: provider, policy: policy}
}

// WithUsage attaches a tracker that records each successful call. A nil
// tracker leaves usage recording off.
func (c *Client) WithUsage(tr costtracker.Tracker) *Client {
	c.usage = tr
	return c
}

// Provider exposes the underlying router, mainly for logging its name.
func (c *Client) Provider() Provider { return c.provider }

// Ready reports a fatal configuration problem with the selected backend.
func (c *Client) Ready() error { return c.provider.Ready() }

func (c *Client) GenerateStory(ctx context.Context, req StoryRequest) (*models.Story, error) {
	var story *models.Story
	err := c.policy.Execute(ctx, ClassifyStoryError, func(ctx context.Context) error {
		var opErr error
		story, opErr = c.provider.GenerateStory(ctx, req)
		return opErr
	})
	if err == nil {
		c.record(ctx, costtracker.OpStory, 0)
	}
	return story, err
}

func (c *Client) AnalyzeReferencePhoto(ctx context.Context, req PhotoRequest) (*models.AppearanceProfile, error) {
	var profile *models.AppearanceProfile
	err := c.policy.Execute(ctx, ClassifyStoryError, func(ctx context.Context) error {
		var opErr error
		profile, opErr = c.provider.AnalyzeReferencePhoto(ctx, req)
		return opErr
	})
	if err == nil {
		c.record(ctx, costtracker.OpPhotoAnalysis, 0)
	}
	return profile, err
}

func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*models.ImageData, error) {
	var img *models.ImageData
	err := c.policy.Execute(ctx, ClassifyImageError, func(ctx context.Context) error {
		var opErr error
		img, opErr = c.provider.GenerateImage(ctx, req)
		return opErr
	})
	if err == nil {
		c.record(ctx, costtracker.OpImage, costtracker.EstimateImageUSD(c.provider.Name()))
	}
	return img, err
}

func (c *Client) record(ctx context.Context, op string, usd float64) {
	if c.usage == nil {
		return
	}
	if err := c.usage.Record(ctx, costtracker.Event{
		Provider:  c.provider.Name(),
		Operation: op,
		AmountUSD: usd,
	}); err != nil {
		log.Warnf("usage tracking failed for %s: %v", op, err)
	}
}
