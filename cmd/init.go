package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/TiltedBl0ck/Tilt-bot-sub000/tiltbot"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"
)

// passwordReader reads a password without echoing it. Tests swap in
// their own.
type passwordReader func() ([]byte, error)

var customPasswordReader passwordReader

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Run database migrations and set admin credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if cfg.DatabaseType == "" {
			return errors.New(
				"TILTBOT_DATABASE_TYPE not set (must be one of: sqlite, postgres)",
			)
		}
		if cfg.Database == "" {
			return errors.New(
				"TILTBOT_DATABASE not set (must be a database connection " +
					"string or sqlite file path)",
			)
		}

		db, err := tiltbot.CreateDB(ctx, cfg.DatabaseType, cfg.Database)
		if err != nil {
			return fmt.Errorf("error creating database: %w", err)
		}

		var runtimeConfig tiltbot.RuntimeConfig
		err = db.Last(&runtimeConfig).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			runtimeConfig = tiltbot.DefaultRuntimeConfig()
			if err = db.Create(&runtimeConfig).Error; err != nil {
				return fmt.Errorf("error creating runtime config: %w", err)
			}
		case err != nil:
			return fmt.Errorf("error loading runtime config: %w", err)
		}

		if runtimeConfig.AdminUsername != "" && runtimeConfig.AdminPassword != "" {
			fmt.Fprintln(out, "Admin credentials are already set.")
			fmt.Fprintln(
				out,
				"Initialization complete. Start the bot with the 'run' subcommand.",
			)
			return nil
		}

		fmt.Fprintln(out, "Admin credentials are not set. Let's set them up.")
		username, err := promptUsername(out, os.Stdin)
		if err != nil {
			return err
		}
		password, err := promptPassword(out)
		if err != nil {
			return err
		}

		hashed, err := tiltbot.HashPassword(password)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}
		err = db.Model(&runtimeConfig).Updates(
			map[string]any{
				"admin_username": username,
				"admin_password": hashed,
			},
		).Error
		if err != nil {
			return fmt.Errorf("error saving admin credentials: %w", err)
		}

		fmt.Fprintln(out, "Admin credentials set successfully.")
		fmt.Fprintln(
			out,
			"Initialization complete. Start the bot with the 'run' subcommand.",
		)
		return nil
	},
}

func promptUsername(out io.Writer, in io.Reader) (string, error) {
	fmt.Fprint(out, "Enter admin username: ")
	username, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && username == "" {
		return "", fmt.Errorf("error reading username: %w", err)
	}
	return strings.TrimSpace(username), nil
}

// promptPassword reads and confirms a password, retrying until both
// entries match
func promptPassword(out io.Writer) (string, error) {
	readPassword := customPasswordReader
	if readPassword == nil {
		readPassword = func() ([]byte, error) {
			return term.ReadPassword(int(syscall.Stdin))
		}
	}
	for {
		fmt.Fprint(out, "Enter admin password: ")
		password, err := readPassword()
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("error reading password: %w", err)
		}

		fmt.Fprint(out, "Confirm admin password: ")
		confirm, err := readPassword()
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("error reading password: %w", err)
		}

		if string(password) == string(confirm) {
			return string(password), nil
		}
		fmt.Fprintln(out, "Passwords do not match. Please try again.")
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
