package services

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/internal/retry"
)

// mockOpenAIClient substitutes the SDK client behind the provider.
type mockOpenAIClient struct {
	chatResp  openai.ChatCompletionResponse
	chatErr   error
	chatReq   *openai.ChatCompletionRequest
	imageResp openai.ImageResponse
	imageErr  error
	imageReq  *openai.ImageRequest
}

func (m *mockOpenAIClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.chatReq = &req
	return m.chatResp, m.chatErr
}

func (m *mockOpenAIClient) CreateImage(_ context.Context, req openai.ImageRequest) (openai.ImageResponse, error) {
	m.imageReq = &req
	return m.imageResp, m.imageErr
}

func chatContent(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestOpenAIProvider(client openAIClient) *OpenAIProvider {
	p := NewOpenAIProvider("test-key", "", "", "")
	p.client = client
	return p
}

func TestOpenAIProvider_GenerateStory(t *testing.T) {
	payload := `{
		"title": "Nora and the Moon",
		"coverPrompt": "Nora waving at the moon",
		"pages": [
			{"pageNumber": 7, "text": "Nora built a rocket.", "location": "the backyard", "imagePrompt": "Nora with a cardboard rocket"},
			{"pageNumber": 9, "text": "She flew past the clouds.", "location": "the sky", "imagePrompt": "Nora flying"}
		],
		"consistency": {"characterDescription": "curly red hair", "outfitDescription": "yellow raincoat"}
	}`
	mock := &mockOpenAIClient{chatResp: chatContent(payload)}
	p := newTestOpenAIProvider(mock)

	story, err := p.GenerateStory(context.Background(), StoryRequest{SubjectName: "Nora", PageCount: 2})
	require.NoError(t, err)

	assert.Equal(t, "Nora and the Moon", story.Title)
	require.Len(t, story.Pages, 2)
	// Page numbers are normalized to array order regardless of what the
	// model claims.
	assert.Equal(t, 1, story.Pages[0].PageNumber)
	assert.Equal(t, 2, story.Pages[1].PageNumber)
	assert.Equal(t, "curly red hair", story.Consistency.CharacterDescription)

	require.NotNil(t, mock.chatReq)
	require.NotNil(t, mock.chatReq.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, mock.chatReq.ResponseFormat.Type)
}

func TestOpenAIProvider_GenerateStory_BadPayload(t *testing.T) {
	mock := &mockOpenAIClient{chatResp: chatContent("not json at all")}
	p := newTestOpenAIProvider(mock)

	_, err := p.GenerateStory(context.Background(), StoryRequest{SubjectName: "Nora", PageCount: 2})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeBadResponse, pe.Code)
}

func TestOpenAIProvider_GenerateImage(t *testing.T) {
	mock := &mockOpenAIClient{
		imageResp: openai.ImageResponse{
			Data: []openai.ImageResponseDataInner{{B64JSON: "aW1hZ2U="}},
		},
	}
	p := newTestOpenAIProvider(mock)

	img, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "girl in a puddle"})
	require.NoError(t, err)
	assert.Equal(t, "aW1hZ2U=", img.B64)
	assert.Equal(t, "image/png", img.MIME)

	require.NotNil(t, mock.imageReq)
	assert.Equal(t, openai.CreateImageResponseFormatB64JSON, mock.imageReq.ResponseFormat)
	assert.Contains(t, mock.imageReq.Prompt, "girl in a puddle")
}

func TestOpenAIProvider_GenerateImage_EmptyResponse(t *testing.T) {
	mock := &mockOpenAIClient{imageResp: openai.ImageResponse{}}
	p := newTestOpenAIProvider(mock)

	_, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeBadResponse, pe.Code)
}

func TestOpenAIProvider_WrapsAPIError(t *testing.T) {
	mock := &mockOpenAIClient{
		imageErr: &openai.APIError{HTTPStatusCode: 429, Message: "rate limit reached"},
	}
	p := newTestOpenAIProvider(mock)

	_, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeRateLimited, pe.Code)
	assert.Equal(t, 429, pe.HTTPStatus)
	assert.Equal(t, retry.ClassTransient, ClassifyImageError(err))
}

func TestOpenAIProvider_InsufficientQuotaIsPermanent(t *testing.T) {
	mock := &mockOpenAIClient{
		imageErr: &openai.APIError{
			HTTPStatusCode: 429,
			Code:           "insufficient_quota",
			Message:        "You exceeded your current quota",
		},
	}
	p := newTestOpenAIProvider(mock)

	_, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeQuotaExceeded, pe.Code)
	assert.Equal(t, retry.ClassPermanent, ClassifyImageError(err))
}

func TestOpenAIProvider_WrapsPlainError(t *testing.T) {
	mock := &mockOpenAIClient{chatErr: errors.New("dial tcp: connection refused")}
	p := newTestOpenAIProvider(mock)

	_, err := p.GenerateStory(context.Background(), StoryRequest{SubjectName: "Nora", PageCount: 1})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeNetwork, pe.Code)
}

func TestOpenAIProvider_DisabledWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	p := NewOpenAIProvider("", "", "", "")

	err := p.Ready()
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeAuthentication, pe.Code)
	assert.Equal(t, retry.ClassPermanent, ClassifyImageError(err))

	_, genErr := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	require.ErrorAs(t, genErr, &pe)
	assert.Equal(t, ErrCodeAuthentication, pe.Code)
}

func TestOpenAIProvider_AnalyzeReferencePhoto(t *testing.T) {
	mock := &mockOpenAIClient{
		chatResp: chatContent(`{"description": "curly red hair, freckles", "outfit": "yellow raincoat"}`),
	}
	p := newTestOpenAIProvider(mock)

	profile, err := p.AnalyzeReferencePhoto(context.Background(), PhotoRequest{
		SubjectName: "Nora",
		Data:        []byte{0xFF, 0xD8},
		MIME:        "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, "Nora", profile.SubjectName)
	assert.Equal(t, "curly red hair, freckles", profile.Description)
	assert.Equal(t, "yellow raincoat", profile.Outfit)

	require.NotNil(t, mock.chatReq)
	parts := mock.chatReq.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/jpeg;base64,")
}
