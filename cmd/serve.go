package cmd

import (
	"net/http"
	"path/filepath"

	"github.com/ZacxDev/sitegen/config"
	"github.com/ZacxDev/sitegen/handlers"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site, rendering each page on request",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		site, err := handlers.LoadSite(cfg, filepath.Dir(configFile), logger)
		if err != nil {
			return errors.Wrap(err, "loading site")
		}

		router, err := site.SetupRouter()
		if err != nil {
			return errors.Wrap(err, "setting up router")
		}

		logger.Info("starting server", "port", port)
		return http.ListenAndServe(":"+port, router)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "9010", "Port to run the server on")
}
