// Command presensiactl administers a presensia deployment from the shell:
// seeding the course catalogue and listing users and courses.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/presensia/presensia-core/config"
	"github.com/presensia/presensia-core/internal/app"
	"github.com/presensia/presensia-core/internal/logging"
)

var (
	flagEmail    string
	flagPassword string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "presensiactl",
		Short:         "Administer presensia users and courses",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagEmail, "email", os.Getenv("PRESENSIA_EMAIL"), "admin account email")
	root.PersistentFlags().StringVar(&flagPassword, "password", os.Getenv("PRESENSIA_PASSWORD"), "admin account password")

	users := &cobra.Command{Use: "users", Short: "Manage users"}
	users.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every user profile",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			return listUsers(ctx, a, cmd.OutOrStdout())
		}),
	})

	courses := &cobra.Command{Use: "courses", Short: "Manage courses"}
	courses.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every course",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			return listCourses(ctx, a, cmd.OutOrStdout())
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "seed-courses",
		Short: "Create the default course catalogue, skipping codes that exist",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			return seedCourses(ctx, a, cmd.OutOrStdout())
		}),
	}, users, courses)
	return root
}

// withApp loads configuration, opens the backends and signs in before run.
func withApp(run func(context.Context, *cobra.Command, *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if flagEmail == "" || flagPassword == "" {
			return fmt.Errorf("--email and --password are required")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, logging.New(cfg.App.Environment, cfg.App.LogLevel))
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		a.Start(ctx)
		if _, err := a.Session.SignIn(ctx, flagEmail, flagPassword); err != nil {
			return err
		}
		defer a.Session.SignOut(ctx)
		return run(ctx, cmd, a)
	}
}
