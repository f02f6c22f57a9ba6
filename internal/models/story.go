package models

// ImagePrompt describes one illustration to generate. PageNumber 0 with
// IsCover=true is the cover; story pages are 1..N in reading order.
type ImagePrompt struct {
	Prompt     string `json:"prompt"`
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
	Location   string `json:"location,omitempty"`
	IsCover    bool   `json:"isCover"`
}

// ConsistencyContext carries the appearance facts that must be echoed
// verbatim into every image prompt of a job so that all illustrations depict
// the same character, outfit, and recurring places.
type ConsistencyContext struct {
	CharacterDescription string            `json:"characterDescription"`
	OutfitDescription    string            `json:"outfitDescription"`
	Appearances          map[string]string `json:"appearances,omitempty"`
}

// AppearanceProfile is the output of the reference-photo analyzer: a textual
// description of the subject suitable for seeding a ConsistencyContext.
type AppearanceProfile struct {
	SubjectName string `json:"subjectName"`
	Description string `json:"description"`
	Outfit      string `json:"outfit"`
}

// StoryPage is one page of a generated story.
type StoryPage struct {
	PageNumber  int    `json:"pageNumber"`
	Text        string `json:"text"`
	Location    string `json:"location"`
	ImagePrompt string `json:"imagePrompt"`
}

// Story is the structured output of the story generator.
type Story struct {
	Title       string             `json:"title"`
	CoverPrompt string             `json:"coverPrompt"`
	Pages       []StoryPage        `json:"pages"`
	Consistency ConsistencyContext `json:"consistency"`
}
