package services

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"storyforge/internal/models"
)

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// stripJSONFence removes a markdown code fence around a JSON payload. Gemini
// in particular sometimes fences its output even when asked for raw JSON.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// decodeStory parses the JSON story payload shared by both backends and
// normalizes page numbering to 1..N in array order.
func decodeStory(raw string) (*models.Story, error) {
	var story models.Story
	if err := json.Unmarshal([]byte(stripJSONFence(raw)), &story); err != nil {
		return nil, fmt.Errorf("parse story payload: %w", err)
	}
	if story.Title == "" || len(story.Pages) == 0 {
		return nil, fmt.Errorf("story payload missing title or pages")
	}
	for i := range story.Pages {
		story.Pages[i].PageNumber = i + 1
	}
	return &story, nil
}

// decodeProfile parses the photo-analysis payload.
func decodeProfile(raw, subjectName string) (*models.AppearanceProfile, error) {
	var payload struct {
		Description string `json:"description"`
		Outfit      string `json:"outfit"`
	}
	if err := json.Unmarshal([]byte(stripJSONFence(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parse appearance payload: %w", err)
	}
	if payload.Description == "" {
		return nil, fmt.Errorf("appearance payload missing description")
	}
	return &models.AppearanceProfile{
		SubjectName: subjectName,
		Description: payload.Description,
		Outfit:      payload.Outfit,
	}, nil
}

// imageMIMESubtype extracts the subtype ("jpeg", "png") genai wants for
// inline image data. Defaults to jpeg for unknown or missing MIME strings.
func imageMIMESubtype(mime string) string {
	if idx := strings.Index(mime, "/"); idx >= 0 && idx+1 < len(mime) {
		return mime[idx+1:]
	}
	return "jpeg"
}
