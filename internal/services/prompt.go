package services

import (
	"fmt"
	"sort"
	"strings"
)

// BuildImagePrompt folds the consistency context into the page's base prompt.
// The context fields are appended verbatim so every page of a job carries the
// exact same character, outfit, and world descriptions.
func BuildImagePrompt(req ImageRequest) string {
	var lines []string

	lines = append(lines, strings.TrimSpace(req.Prompt))
	lines = append(lines, "Children's book illustration style: warm, soft colors, gentle lighting, consistent character design across pages.")

	if subject := strings.TrimSpace(req.Subject); subject != "" {
		lines = append(lines, "The main character is named "+subject+".")
	}
	if desc := strings.TrimSpace(req.Context.CharacterDescription); desc != "" {
		lines = append(lines, "Main character appearance: "+desc)
	}
	if outfit := strings.TrimSpace(req.Context.OutfitDescription); outfit != "" {
		lines = append(lines, "The character always wears: "+outfit)
	}
	if len(req.Context.Appearances) > 0 {
		names := make([]string, 0, len(req.Context.Appearances))
		for name := range req.Context.Appearances {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("%s looks like: %s", name, req.Context.Appearances[name]))
		}
	}
	if loc := strings.TrimSpace(req.Location); loc != "" {
		lines = append(lines, "Scene location: "+loc)
	}

	return strings.Join(lines, "\n")
}

// BuildStoryPrompt asks the model for the full story structure as JSON.
func BuildStoryPrompt(req StoryRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a children's story starring %s", req.SubjectName)
	if theme := strings.TrimSpace(req.Theme); theme != "" {
		fmt.Fprintf(&b, " about %s", theme)
	}
	fmt.Fprintf(&b, ", split into exactly %d pages of 2-3 sentences each.\n", req.PageCount)

	if req.Appearance != nil {
		fmt.Fprintf(&b, "The main character looks like: %s\n", req.Appearance.Description)
		if req.Appearance.Outfit != "" {
			fmt.Fprintf(&b, "They wear: %s\n", req.Appearance.Outfit)
		}
	}

	b.WriteString(`Respond with a single JSON object of this shape:
{
  "title": "...",
  "coverPrompt": "illustration prompt for the cover",
  "pages": [{"pageNumber": 1, "text": "...", "location": "...", "imagePrompt": "..."}],
  "consistency": {
    "characterDescription": "...",
    "outfitDescription": "...",
    "appearances": {"named place or character": "canonical appearance"}
  }
}
Every recurring location or side character must appear in "appearances".`)
	return b.String()
}

// BuildPhotoPrompt asks the model to describe the subject of a reference
// photo as reusable appearance facts.
func BuildPhotoPrompt(subjectName string) string {
	return fmt.Sprintf(`Describe the person in this photo, named %s, for a children's book illustrator.
Respond with a single JSON object: {"description": "face, hair, build, notable features", "outfit": "one fixed outfit to draw them in"}.
Keep both fields under 60 words.`, subjectName)
}
