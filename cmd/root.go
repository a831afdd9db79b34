// Package cmd holds the media-library command line: the service itself
// and a client that drives a running service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "main"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "media-library",
		Short:         "Media library storage service and client",
		Long:          "Serves the media library API and manages uploads, folders and cloud mirrors of a running instance.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().String("config", "", "config file (default is ./config.toml)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("api-url", "", "address of the media library service")
	cmd.PersistentFlags().String("token", "", "bearer token used by the client")
	cmd.PersistentFlags().StringP("project", "p", "", "project to operate on")
	cmd.PersistentFlags().String("prefs", "", "path of the client preferences file")

	cmd.Version = fmt.Sprintf("%s.%s", version, commit)

	cmd.AddCommand(NewServeCommand())

	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewTreeCommand())
	cmd.AddCommand(NewMkdirCommand())
	cmd.AddCommand(NewUploadCommand())
	cmd.AddCommand(NewRemoveCommand())
	cmd.AddCommand(NewURLCommand())
	cmd.AddCommand(NewQuotaCommand())
	cmd.AddCommand(NewSyncCommand())
	cmd.AddCommand(NewConnectionsCommand())

	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
