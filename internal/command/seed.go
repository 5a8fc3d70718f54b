package command

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/stolasapp/caseview/internal/sec"
	"github.com/stolasapp/caseview/internal/storage"
	"github.com/stolasapp/caseview/internal/storage/db"
)

func seedCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed demo users",
		Long: "Creates randomly generated demo users for local development and prints\n" +
			"their credentials. Existing usernames are skipped, so the command is safe\n" +
			"to re-run.",
		Args: cobra.NoArgs,
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

			if !cfg.DevMode {
				return errors.New("seeding requires CASEVIEW_DEV_MODE=true")
			}

			faker := gofakeit.New(0)
			created := 0
			for created < count {
				username := faker.Username()
				password := faker.Password(true, true, true, false, false, 12)

				hash, err := sec.HashPassword(password)
				if err != nil {
					return err
				}
				_, err = store.CreateUser(cmd.Context(), db.User{
					Name:         username,
					PasswordHash: hash,
				})
				if errors.Is(err, storage.ErrAlreadyExists) || errors.Is(err, storage.ErrInvalidUsername) {
					continue
				} else if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", username, password)
				created++
			}

			logger.InfoContext(cmd.Context(), "seeded demo users", slog.Int("count", created))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 2, "number of demo users to create")
	return cmd
}
