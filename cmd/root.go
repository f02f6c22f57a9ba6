package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storyforge/internal/app"
	"storyforge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "storyforge",
	Short: "Storyforge CLI",
	Long:  `Storyforge turns a subject, a theme, and a reference photo into an illustrated, personalized children's story.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is given, print help.
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		// Store the app instance in the command's context.
		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Custom context key type to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the app instance stored by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the storyforge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("storyforge v0.3.0")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
