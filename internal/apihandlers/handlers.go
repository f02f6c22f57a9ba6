package apihandlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"storyforge/internal/app"
	"storyforge/internal/models"
	"storyforge/internal/orchestrator"
	"storyforge/internal/services"
	"storyforge/internal/store"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// CreateStoryRequest starts the text half of the pipeline: analyze the
// reference photo (if given), then generate the story structure.
type CreateStoryRequest struct {
	SubjectName    string `json:"subjectName" binding:"required"`
	Theme          string `json:"theme"`
	PageCount      int    `json:"pageCount"`
	ReferencePhoto string `json:"referencePhoto"` // base64
	PhotoMIME      string `json:"photoMime"`
}

type CreateStoryResponse struct {
	Story        *models.Story        `json:"story"`
	ImagePrompts []models.ImagePrompt `json:"imagePrompts"`
}

func (h *APIHandler) CreateStoryHandler(c *gin.Context) {
	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.PageCount <= 0 {
		req.PageCount = 5
	}
	if req.PageCount > 20 {
		BadRequest(c, "pageCount must be 20 or fewer")
		return
	}

	ctx := c.Request.Context()

	var profile *models.AppearanceProfile
	if req.ReferencePhoto != "" {
		photo, err := base64.StdEncoding.DecodeString(req.ReferencePhoto)
		if err != nil {
			BadRequest(c, "referencePhoto is not valid base64")
			return
		}
		profile, err = h.App.Client.AnalyzeReferencePhoto(ctx, services.PhotoRequest{
			SubjectName: req.SubjectName,
			Data:        photo,
			MIME:        req.PhotoMIME,
		})
		if err != nil {
			log.Errorf("photo analysis failed: %v", err)
			Internal(c, "photo analysis failed: "+err.Error())
			return
		}
	}

	story, err := h.App.Client.GenerateStory(ctx, services.StoryRequest{
		SubjectName: req.SubjectName,
		Theme:       req.Theme,
		PageCount:   req.PageCount,
		Appearance:  profile,
	})
	if err != nil {
		log.Errorf("story generation failed: %v", err)
		Internal(c, "story generation failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": CreateStoryResponse{
		Story:        story,
		ImagePrompts: ImagePromptsFromStory(story),
	}})
}

// IllustrateRequest carries one batch of image prompts plus the consistency
// context echoed into every generation call. SubjectName and the base64
// ReferencePhoto are optional and ride along into every image call.
type IllustrateRequest struct {
	ImagePrompts       []models.ImagePrompt      `json:"imagePrompts" binding:"required"`
	ConsistencyContext models.ConsistencyContext `json:"consistencyContext"`
	SubjectName        string                    `json:"subjectName"`
	ReferencePhoto     string                    `json:"referencePhoto"` // base64
	PhotoMIME          string                    `json:"photoMime"`
}

// generateRequest decodes the optional reference photo and assembles the
// orchestrator request.
func (req *IllustrateRequest) generateRequest() (orchestrator.GenerateRequest, error) {
	out := orchestrator.GenerateRequest{
		Prompts:   req.ImagePrompts,
		Context:   req.ConsistencyContext,
		Subject:   req.SubjectName,
		PhotoMIME: req.PhotoMIME,
	}
	if req.ReferencePhoto != "" {
		photo, err := base64.StdEncoding.DecodeString(req.ReferencePhoto)
		if err != nil {
			return orchestrator.GenerateRequest{}, fmt.Errorf("%w: referencePhoto is not valid base64", models.ErrValidation)
		}
		out.Photo = photo
	}
	return out, nil
}

// IllustrateHandler generates the batch synchronously and returns the
// ordered results in-band. The finished batch is also recorded in the
// registry so a client that lost the response can re-read it by job id while
// the retention window lasts.
func (h *APIHandler) IllustrateHandler(c *gin.Context) {
	var req IllustrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.ImagePrompts) == 0 {
		BadRequest(c, "imagePrompts must not be empty")
		return
	}
	genReq, err := req.generateRequest()
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	job, err := h.App.JobStore.Create(ctx, h.App.Config.SyncRetention())
	if err != nil {
		Internal(c, "failed to create job: "+err.Error())
		return
	}

	results, err := h.App.Selector.GenerateSync(ctx, genReq, nil)
	if err != nil {
		log.Errorf("synchronous generation failed: %v", err)
		h.recordJobFailure(c, job.ID, err)
		Internal(c, "generation failed: "+err.Error())
		return
	}

	job, err = h.App.JobStore.Update(ctx, job.ID, store.JobUpdate{
		Status:   store.StatusPtr(models.JobStatusCompleted),
		Progress: store.ProgressPtr(100),
		Message:  store.StrPtr("all illustrations settled"),
		Result:   results,
	})
	if err != nil {
		Internal(c, "failed to record results: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job})
}

// StartJobHandler accepts a batch for background execution: 202 plus the job
// id the client polls.
func (h *APIHandler) StartJobHandler(c *gin.Context) {
	var req IllustrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.ImagePrompts) == 0 {
		BadRequest(c, "imagePrompts must not be empty")
		return
	}
	genReq, err := req.generateRequest()
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	job, err := h.App.Selector.StartBackground(c.Request.Context(), genReq)
	if err != nil {
		if errors.Is(err, orchestrator.ErrDispatcherBusy) {
			Unavailable(c, "background worker pool is saturated, retry shortly")
			return
		}
		Internal(c, "failed to start job: "+err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{
		"jobId":  job.ID,
		"status": job.Status,
	}})
}

// JobStatusHandler returns the full job document; unknown or evicted ids are
// a 404, distinct from a job that is still queued.
func (h *APIHandler) JobStatusHandler(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.App.JobStore.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("job %s not found (unknown or expired)", jobID))
			return
		}
		Internal(c, "failed to read job: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

func (h *APIHandler) recordJobFailure(c *gin.Context, jobID string, cause error) {
	if _, err := h.App.JobStore.Update(c.Request.Context(), jobID, store.JobUpdate{
		Status:  store.StatusPtr(models.JobStatusFailed),
		Message: store.StrPtr("job failed"),
		Error:   store.StrPtr(cause.Error()),
	}); err != nil {
		log.WithField("job_id", jobID).Errorf("failed to record job failure: %v", err)
	}
}

// ImagePromptsFromStory flattens a story into the prompt batch for the
// illustration endpoints: cover first, then pages in reading order.
func ImagePromptsFromStory(story *models.Story) []models.ImagePrompt {
	prompts := make([]models.ImagePrompt, 0, len(story.Pages)+1)
	cover := story.CoverPrompt
	if cover == "" {
		cover = fmt.Sprintf("Book cover for %q", story.Title)
	}
	prompts = append(prompts, models.ImagePrompt{
		Prompt:     cover,
		PageNumber: 0,
		IsCover:    true,
	})
	for _, page := range story.Pages {
		prompts = append(prompts, models.ImagePrompt{
			Prompt:     page.ImagePrompt,
			PageNumber: page.PageNumber,
			Text:       page.Text,
			Location:   page.Location,
		})
	}
	return prompts
}
