package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"storyforge/internal/apihandlers"
	"storyforge/internal/clix"
	"storyforge/internal/models"
	"storyforge/internal/orchestrator"
	"storyforge/internal/photoload"
	"storyforge/internal/services"
	"storyforge/internal/util"
)

var (
	generateSubject string
	generateTheme   string
	generatePages   int
	generatePhoto   string
	generateOut     string
)

// generateCmd runs the whole pipeline in-process: photo analysis, story
// structure, illustrations, and assembly to disk.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a personalized illustrated story",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		pages, err := clix.ParsePageCount(cmd.Flags(), "pages", 20)
		if err != nil {
			return err
		}

		info := color.New(color.FgCyan)
		ok := color.New(color.FgGreen)
		warn := color.New(color.FgYellow)

		var profile *models.AppearanceProfile
		var photo *photoload.Photo
		if generatePhoto != "" {
			info.Printf("Analyzing reference photo %s...\n", generatePhoto)
			photo, err = photoload.Load(generatePhoto)
			if err != nil {
				return err
			}
			profile, err = appInstance.Client.AnalyzeReferencePhoto(ctx, services.PhotoRequest{
				SubjectName: generateSubject,
				Data:        photo.Data,
				MIME:        photo.MIME,
			})
			if err != nil {
				return fmt.Errorf("photo analysis failed: %w", err)
			}
			ok.Printf("Subject described: %s\n", profile.Description)
		}

		info.Printf("Generating a %d-page story for %s...\n", pages, generateSubject)
		story, err := appInstance.Client.GenerateStory(ctx, services.StoryRequest{
			SubjectName: generateSubject,
			Theme:       generateTheme,
			PageCount:   pages,
			Appearance:  profile,
		})
		if err != nil {
			return fmt.Errorf("story generation failed: %w", err)
		}
		ok.Printf("Story ready: %q (%d pages)\n", story.Title, len(story.Pages))

		prompts := apihandlers.ImagePromptsFromStory(story)
		info.Printf("Illustrating %d pages (cover included)...\n", len(prompts))
		genReq := orchestrator.GenerateRequest{
			Prompts: prompts,
			Context: story.Consistency,
			Subject: generateSubject,
		}
		if photo != nil {
			genReq.Photo = photo.Data
			genReq.PhotoMIME = photo.MIME
		}
		results, err := appInstance.Selector.Generate(ctx, genReq, func(progress int) {
			fmt.Printf("\rprogress: %3d%%", progress)
		})
		fmt.Println()
		if err != nil {
			return fmt.Errorf("illustration failed: %w", err)
		}

		if err := os.MkdirAll(generateOut, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Page", "Status", "Output"})
		for _, r := range results {
			label := fmt.Sprintf("%d", r.PageNumber)
			if r.IsCover {
				label = "cover"
			}
			switch {
			case r.Error != "":
				warn.Printf("page %s failed: %s\n", label, r.Error)
				table.Append([]string{label, "failed", r.Error})
			case r.Image == nil:
				table.Append([]string{label, "missing", "no image returned"})
			default:
				path, err := writeImage(generateOut, label, r.Image)
				if err != nil {
					return err
				}
				table.Append([]string{label, "ok", path})
			}
		}
		table.Render()

		ok.Printf("Done. %d/%d illustrations succeeded.\n", countImages(results), len(results))
		if usage, err := appInstance.Usage.Summary(ctx); err == nil && usage.TotalUSD > 0 {
			info.Printf("Estimated spend: $%.2f\n", usage.TotalUSD)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateSubject, "subject", "", "Name of the story's main character (required)")
	generateCmd.Flags().StringVar(&generateTheme, "theme", "", "Story theme, e.g. 'a trip to the moon'")
	generateCmd.Flags().IntVar(&generatePages, "pages", 5, "Number of story pages")
	generateCmd.Flags().StringVar(&generatePhoto, "photo", "", "Path to a reference photo of the subject")
	generateCmd.Flags().StringVar(&generateOut, "out", "story-output", "Directory for generated images")
	generateCmd.MarkFlagRequired("subject")
}

func writeImage(dir, label string, img *models.ImageData) (string, error) {
	if img.B64 == "" {
		// Some backends return hosted URLs instead of inline bytes.
		return img.URL, nil
	}
	data, err := base64.StdEncoding.DecodeString(img.B64)
	if err != nil {
		return "", fmt.Errorf("decode image for page %s: %w", label, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("page-%s%s", label, util.ExtForImageMIME(img.MIME)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image for page %s: %w", label, err)
	}
	return path, nil
}

func countImages(results []models.PageResult) int {
	n := 0
	for _, r := range results {
		if r.Image != nil {
			n++
		}
	}
	return n
}
