package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storyforge/internal/apihandlers"
	"storyforge/internal/config"
)

var (
	serveAddr string
	servePort string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run storyforge as an HTTP API server",
	Long: `Starts an HTTP server exposing story generation and illustration jobs
via a RESTful API: synchronous generation for hosts with a generous execution
budget, and a start-then-poll job protocol for short-request deployments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		router := gin.Default()
		apiHandler := apihandlers.NewAPIHandler(appInstance)

		v1 := router.Group("/api/v1")
		{
			v1.POST("/stories", apiHandler.CreateStoryHandler)

			illustrations := v1.Group("/illustrations")
			{
				illustrations.POST("", apiHandler.IllustrateHandler)
				illustrations.POST("/jobs", apiHandler.StartJobHandler)
				illustrations.GET("/jobs/:id", apiHandler.JobStatusHandler)
			}
		}

		router.GET("/health", func(c *gin.Context) {
			usage, err := appInstance.Usage.Summary(c.Request.Context())
			if err != nil {
				log.Warnf("usage summary unavailable: %v", err)
			}
			c.JSON(http.StatusOK, gin.H{
				"status":   "ok",
				"provider": appInstance.Client.Provider().Name(),
				"usage": gin.H{
					"calls":             usage.Calls,
					"estimatedSpendUsd": usage.TotalUSD,
				},
			})
		})

		listenAddr := resolveListenAddr(appInstance.Config, serveAddr, servePort)
		log.Infof("Starting storyforge API server on http://%s", listenAddr)

		if err := router.Run(listenAddr); err != nil {
			log.Errorf("Failed to run API server: %v", err)
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

// resolveListenAddr combines the --addr/--port flags with the server section
// of the config file. Flags win; unset flags fall back to the configured
// values, which themselves default to localhost:8080.
func resolveListenAddr(cfg *config.Config, addr, port string) string {
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if port == "" {
		port = cfg.Server.Port
	}
	return fmt.Sprintf("%s:%s", addr, port)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (defaults to server.addr from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (defaults to server.port from config)")
}
