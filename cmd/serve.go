package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"filmforge/media-library/app"
	"filmforge/media-library/config"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the media library service",
		Long:  "Start the media library HTTP API backed by the configured bucket and database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Setup(cmd.Flags()); err != nil {
				return err
			}

			config.MakeLogger(v.GetString("app.log_level"))
			defer zap.L().Sync()

			gin.SetMode(gin.ReleaseMode)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			router, err := app.NewRouter(ctx)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", v.GetInt("host.port")),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()

				shutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()

				if err := srv.Shutdown(shutdown); err != nil {
					zap.L().Error("Failed to shut down cleanly", zap.Error(err))
				}
			}()

			zap.L().Info("Server starting", zap.String("addr", srv.Addr))

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			zap.L().Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().Int("port", 8080, "port to listen on")

	return cmd
}
