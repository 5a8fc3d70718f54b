package command

import (
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/caseview/internal/app"
	"github.com/stolasapp/caseview/internal/server"
	"github.com/stolasapp/caseview/internal/session"
)

// sweepInterval paces the background cleanup of expired session rows.
const sweepInterval = time.Hour

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the case lookup web app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			sessions := session.NewManager(store,
				session.WithTTLs(cfg.SessionTTL, cfg.RememberTTL),
			)

			grp, ctx := errgroup.WithContext(cmd.Context())

			listener, err := server.Listen(ctx, cfg.WebAddress)
			if err != nil {
				return err
			}

			srv := app.New(cfg, logger, sessions)
			logger.InfoContext(ctx,
				"starting app server...",
				slog.String("address", cfg.WebAddress),
			)
			server.Serve(ctx, grp, srv.Server, listener)

			grp.Go(func() error {
				ticker := time.NewTicker(sweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						swept, err := sessions.Sweep(ctx)
						if err != nil {
							logger.WarnContext(ctx, "session sweep failed", slog.Any("error", err))
						} else if swept > 0 {
							logger.DebugContext(ctx, "swept expired sessions", slog.Int64("count", swept))
						}
					}
				}
			})

			return grp.Wait()
		},
	}
}
