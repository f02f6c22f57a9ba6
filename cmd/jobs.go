package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storyforge/internal/clix"
	"storyforge/internal/models"
	"storyforge/internal/orchestrator"
	"storyforge/internal/store"
)

var jobsServer string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect illustration jobs on a running storyforge server",
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Print a single status snapshot of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL, err := clix.ParseServerURL(cmd.Flags())
		if err != nil {
			return err
		}
		reader := &httpJobReader{baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
		job, err := reader.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJob(job)
	},
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Poll a job until it settles or the wait ceiling elapses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config

		baseURL, err := clix.ParseServerURL(cmd.Flags())
		if err != nil {
			return err
		}
		reader := &httpJobReader{baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
		poller := orchestrator.NewPoller(reader, cfg.PollInterval(), cfg.PollCeiling(), orchestrator.ProgressWindow{
			Lo: cfg.Polling.WindowLo,
			Hi: cfg.Polling.WindowHi,
		})

		results, err := poller.AwaitJob(cmd.Context(), args[0], func(progress int) {
			fmt.Printf("\rprogress: %3d%%", progress)
		})
		fmt.Println()
		if err != nil {
			return err
		}
		color.Green("job settled with %d page result(s)", len(results))
		for _, r := range results {
			if r.Error != "" {
				color.Yellow("page %d: %s", r.PageNumber, r.Error)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsWatchCmd)

	jobsCmd.PersistentFlags().StringVar(&jobsServer, "server", "http://localhost:8080", "Base URL of the storyforge server")
}

func printJob(job *models.Job) error {
	out, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// httpJobReader adapts the status endpoint to orchestrator.JobReader so the
// same poller works in- and out-of-process. A 404 maps to store.ErrNotFound,
// which the poller tolerates per tick.
type httpJobReader struct {
	baseURL string
	client  *http.Client
}

func (r *httpJobReader) Get(ctx context.Context, id string) (*models.Job, error) {
	url := fmt.Sprintf("%s/api/v1/illustrations/jobs/%s", r.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, store.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job status request returned %s", resp.Status)
	}

	var payload struct {
		Data models.Job `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode job status response: %w", err)
	}
	return &payload.Data, nil
}
