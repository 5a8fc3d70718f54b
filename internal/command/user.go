package command

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stolasapp/caseview/internal/sec"
	"github.com/stolasapp/caseview/internal/storage/db"
)

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User commands",
	}
	cmd.AddCommand(
		userCreateCommand(),
		userUpdateCommand(),
		userDeleteCommand(),
		userListCommand(),
	)
	return cmd
}

func userCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create user",
		Long: "Registers a user with the provided username and password. Passwords may be\n" +
			"provided via stdin or through the interactive prompt. Fails if the username\n" +
			"is already taken.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			name := args[0]
			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			}
			hash, err := sec.HashPassword(passwd)
			if err != nil {
				return err
			}
			if _, err = store.CreateUser(cmd.Context(), db.User{
				Name:         name,
				PasswordHash: hash,
			}); err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "created user", slog.String("name", name))
			return nil
		},
	}
}

func userUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update NAME",
		Short: "Update user password",
		Long: "Replaces the password for an existing user. The previous hash is not\n" +
			"retained. Fails if the user does not exist.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			name := args[0]
			passwd, err := prompt("new password: ", true)
			if err != nil {
				return err
			}
			hash, err := sec.HashPassword(passwd)
			if err != nil {
				return err
			}
			if err = store.UpdatePassword(cmd.Context(), name, hash); err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "updated user password", slog.String("name", name))
			return nil
		},
	}
}

func userDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete user",
		Long: "Permanently deletes the user and their sessions. " +
			"This operation is permanent and irreversible.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			name := args[0]
			logger = logger.With(slog.String("name", name))
			user, err := store.GetUserByName(cmd.Context(), name)
			if err != nil {
				return err
			}
			resp, err := prompt("Are you sure you want to delete this user? [y|N] ", false)
			if !bytes.Equal(resp, []byte{'y'}) || err != nil {
				logger.InfoContext(cmd.Context(), "aborted user deletion")
				return err
			}
			if err = store.DeleteUser(cmd.Context(), user.ID); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "user deleted")
			return nil
		},
	}
}

func userListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			_, _, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			const pageSize = 100
			afterName := ""
			for {
				users, err := store.ListUsers(cmd.Context(), afterName, pageSize)
				if err != nil {
					return err
				}
				for _, user := range users {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", user.ID, user.Name)
				}
				if len(users) < pageSize {
					return nil
				}
				afterName = users[len(users)-1].Name
			}
		},
	}
}
