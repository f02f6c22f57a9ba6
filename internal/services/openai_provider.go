package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"storyforge/internal/models"
)

// openAIClient is the minimal surface of *openai.Client the provider needs;
// tests substitute a mock.
type openAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
}

// OpenAIProvider implements Provider against the OpenAI API: chat completions
// for story structure and photo analysis, the images endpoint for
// illustrations.
type OpenAIProvider struct {
	client     openAIClient
	storyModel string
	imageModel string
	imageSize  string
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates the OpenAI backend. A missing API key does not
// fail construction; calls against the disabled provider return a permanent
// authentication error, which is how a missing credential reaches the job's
// failure path.
func NewOpenAIProvider(apiKey, storyModel, imageModel, imageSize string) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	p := &OpenAIProvider{
		storyModel: storyModel,
		imageModel: imageModel,
		imageSize:  imageSize,
	}
	if p.storyModel == "" {
		p.storyModel = openai.GPT4oMini
	}
	if p.imageModel == "" {
		p.imageModel = openai.CreateImageModelDallE3
	}
	if p.imageSize == "" {
		p.imageSize = openai.CreateImageSize1024x1024
	}
	if apiKey == "" {
		log.Warn("OpenAI API key not provided. OpenAI provider will be disabled.")
		return p
	}
	p.client = openai.NewClient(apiKey)
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Ready() error {
	if p.client == nil {
		return p.disabledErr()
	}
	return nil
}

func (p *OpenAIProvider) GenerateStory(ctx context.Context, req StoryRequest) (*models.Story, error) {
	if p.client == nil {
		return nil, p.disabledErr()
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.storyModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You write warm, simple children's stories and reply only with JSON."},
			{Role: openai.ChatMessageRoleUser, Content: BuildStoryPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, p.wrapErr("story generation failed", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, "story completion returned no content", nil)
	}

	story, err := decodeStory(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, err.Error(), err)
	}
	return story, nil
}

func (p *OpenAIProvider) AnalyzeReferencePhoto(ctx context.Context, req PhotoRequest) (*models.AppearanceProfile, error) {
	if p.client == nil {
		return nil, p.disabledErr()
	}

	mime := req.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, encodeBase64(req.Data))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.storyModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: BuildPhotoPrompt(req.SubjectName)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, p.wrapErr("photo analysis failed", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, "photo analysis returned no content", nil)
	}

	profile, err := decodeProfile(resp.Choices[0].Message.Content, req.SubjectName)
	if err != nil {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, err.Error(), err)
	}
	return profile, nil
}

// GenerateImage renders one illustration. The images endpoint accepts text
// only, so a reference photo reaches this backend as the appearance details
// in req.Context rather than as pixels.
func (p *OpenAIProvider) GenerateImage(ctx context.Context, req ImageRequest) (*models.ImageData, error) {
	if p.client == nil {
		return nil, p.disabledErr()
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         BuildImagePrompt(req),
		Model:          p.imageModel,
		N:              1,
		Size:           p.imageSize,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, p.wrapErr("image generation failed", err)
	}
	if len(resp.Data) == 0 || (resp.Data[0].B64JSON == "" && resp.Data[0].URL == "") {
		return nil, newProviderError(p.Name(), ErrCodeBadResponse, "image response contained no image", nil)
	}

	return &models.ImageData{
		B64:  resp.Data[0].B64JSON,
		MIME: "image/png",
		URL:  resp.Data[0].URL,
	}, nil
}

func (p *OpenAIProvider) disabledErr() error {
	return newProviderError(p.Name(), ErrCodeAuthentication, "OpenAI API key not configured", nil)
}

// wrapErr normalizes go-openai errors into ProviderError so callers and the
// retry classifier never see SDK-specific shapes.
func (p *OpenAIProvider) wrapErr(msg string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := codeForHTTPStatus(apiErr.HTTPStatusCode)
		// OpenAI reports exhausted credits as a 429 with a dedicated code;
		// retrying those is pointless.
		if s, ok := apiErr.Code.(string); ok && s == "insufficient_quota" {
			code = ErrCodeQuotaExceeded
		}
		return &ProviderError{
			Provider:   p.Name(),
			Code:       code,
			Message:    fmt.Sprintf("%s: %s", msg, apiErr.Message),
			HTTPStatus: apiErr.HTTPStatusCode,
			Cause:      err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{
			Provider:   p.Name(),
			Code:       codeForHTTPStatus(reqErr.HTTPStatusCode),
			Message:    msg,
			HTTPStatus: reqErr.HTTPStatusCode,
			Cause:      err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(p.Name(), ErrCodeTimeout, msg, err)
	}
	return newProviderError(p.Name(), ErrCodeNetwork, msg, err)
}
