package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"storyforge/internal/models"
)

// GeminiProvider implements Provider against the Google Gemini API. Story
// structure and photo analysis go through a text model with a JSON response
// MIME type; illustrations go through an image-capable model whose response
// parts carry inline blobs.
type GeminiProvider struct {
	client     *genai.Client
	storyModel string
	imageModel string
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates the Gemini backend. Like the OpenAI provider, a
// missing key produces a disabled provider whose calls fail with a permanent
// authentication error rather than a construction failure.
func NewGeminiProvider(ctx context.Context, apiKey, storyModel, imageModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	p := &GeminiProvider{
		storyModel: storyModel,
		imageModel: imageModel,
	}
	if p.storyModel == "" {
		p.storyModel = "gemini-1.5-flash"
	}
	if p.imageModel == "" {
		p.imageModel = "gemini-2.0-flash-exp"
	}
	if apiKey == "" {
		log.Warn("Gemini API key not provided. Gemini provider will be disabled.")
		return p, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	log.Infof("Gemini provider initialized (story=%s, image=%s)", p.storyModel, p.imageModel)
	return p, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Ready() error {
	if p.client == nil {
		return p.disabledErr()
	}
	return nil
}

func (p *GeminiProvider) GenerateStory(ctx context.Context, req StoryRequest) (*models.Story, error) {
	if p.client == nil {
		return nil, p.disabledErr()
	}

	m := p.client.GenerativeModel(p.storyModel)
	m.ResponseMIMEType = "application/json"

	res, err := m.GenerateContent(ctx, genai.Text(BuildStoryPrompt(req)))
	if err != nil {
		return nil, p.wrapErr("story generation failed", err)
	}
	raw := textFromResponse(res)
	if raw == "" {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, "story response contained no text", nil)
	}

	story, err := decodeStory(raw)
	if err != nil {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, err.Error(), err)
	}
	return story, nil
}

func (p *GeminiProvider) AnalyzeReferencePhoto(ctx context.Context, req PhotoRequest) (*models.AppearanceProfile, error) {
	if p.client == nil {
		return nil, p.disabledErr()
	}

	m := p.client.GenerativeModel(p.storyModel)
	m.ResponseMIMEType = "application/json"

	res, err := m.GenerateContent(ctx,
		genai.Text(BuildPhotoPrompt(req.SubjectName)),
		genai.ImageData(imageMIMESubtype(req.MIME), req.Data),
	)
	if err != nil {
		return nil, p.wrapErr("photo analysis failed", err)
	}
	raw := textFromResponse(res)
	if raw == "" {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, "photo analysis returned no text", nil)
	}

	profile, err := decodeProfile(raw, req.SubjectName)
	if err != nil {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, err.Error(), err)
	}
	return profile, nil
}

func (p *GeminiProvider) GenerateImage(ctx context.Context, req ImageRequest) (*models.ImageData, error) {
	if p.client == nil {
		return nil, p.disabledErr()
	}

	m := p.client.GenerativeModel(p.imageModel)
	parts := []genai.Part{genai.Text(BuildImagePrompt(req))}
	if len(req.Photo) > 0 {
		// Condition the illustration on the reference photo directly; the
		// image model accepts inline image parts alongside the prompt.
		parts = append(parts, genai.ImageData(imageMIMESubtype(req.PhotoMIME), req.Photo))
	}
	res, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, p.wrapErr("image generation failed", err)
	}

	if blob := blobFromResponse(res); blob != nil {
		mime := blob.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return &models.ImageData{
			B64:  encodeBase64(blob.Data),
			MIME: mime,
		}, nil
	}
	return nil, newProviderError(p.Name(), ErrCodeBadResponse, "image response contained no image part", nil)
}

func (p *GeminiProvider) disabledErr() error {
	return newProviderError(p.Name(), ErrCodeAuthentication, "Gemini API key not configured", nil)
}

// wrapErr normalizes genai/googleapi errors into ProviderError.
func (p *GeminiProvider) wrapErr(msg string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   p.Name(),
			Code:       codeForHTTPStatus(apiErr.Code),
			Message:    fmt.Sprintf("%s: %s", msg, apiErr.Message),
			HTTPStatus: apiErr.Code,
			Cause:      err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(p.Name(), ErrCodeTimeout, msg, err)
	}
	return newProviderError(p.Name(), ErrCodeNetwork, msg, err)
}

// textFromResponse concatenates the text parts of the first candidate.
func textFromResponse(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// blobFromResponse returns the first inline image blob of the first
// candidate, or nil when the model produced only text.
func blobFromResponse(res *genai.GenerateContentResponse) *genai.Blob {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
			return &blob
		}
	}
	return nil
}
