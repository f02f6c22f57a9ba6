package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripJSONFence(t *testing.T) {
	raw := "```json\n{\"title\": \"x\"}\n```"
	assert.Equal(t, `{"title": "x"}`, stripJSONFence(raw))

	bare := "```\n{\"title\": \"x\"}\n```"
	assert.Equal(t, `{"title": "x"}`, stripJSONFence(bare))

	plain := `{"title": "x"}`
	assert.Equal(t, plain, stripJSONFence(plain))
}

func TestDecodeStory_RejectsEmptyPayload(t *testing.T) {
	_, err := decodeStory(`{"title": "", "pages": []}`)
	require.Error(t, err)

	_, err = decodeStory(`{"title": "x"}`)
	require.Error(t, err)
}

func TestDecodeProfile_RequiresDescription(t *testing.T) {
	_, err := decodeProfile(`{"outfit": "raincoat"}`, "Nora")
	require.Error(t, err)

	profile, err := decodeProfile("```json\n{\"description\": \"freckles\"}\n```", "Nora")
	require.NoError(t, err)
	assert.Equal(t, "Nora", profile.SubjectName)
	assert.Equal(t, "freckles", profile.Description)
}

func TestImageMIMESubtype(t *testing.T) {
	assert.Equal(t, "png", imageMIMESubtype("image/png"))
	assert.Equal(t, "jpeg", imageMIMESubtype("image/jpeg"))
	assert.Equal(t, "jpeg", imageMIMESubtype(""))
	assert.Equal(t, "jpeg", imageMIMESubtype("png"))
}
