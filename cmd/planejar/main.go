// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planejarpatrimonio/backend/internal/app"
	"github.com/planejarpatrimonio/backend/internal/controller"
	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/identity"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "planejar",
		Short:         "Operational tasks for the Planejar Patrimônio backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	withApp := func(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.Load(configPath)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			return fn(cmd, args, a)
		}
	}

	root.AddCommand(
		newMigrateCmd(withApp),
		newSeedCmd(withApp),
		newClearCmd(withApp),
		newProjectsCmd(withApp),
		newVisibleCmd(withApp),
		newResetPasswordCmd(withApp),
		newKeygenCmd(),
	)

	return root
}

type appRunner func(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error

func newMigrateCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			if err := core.Migrate(cmd.Context(), a.DB.DB.DB); err != nil {
				return err
			}

			version, err := core.MigrationVersion(cmd.Context(), a.DB.DB.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		}),
	}
}

func newSeedCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts and demo project on an empty system",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			res, err := a.Seeder.Initialize(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.AlreadySeeded {
				fmt.Fprintln(out, "already seeded, nothing to do")
				return nil
			}
			for _, email := range res.UsersCreated {
				fmt.Fprintln(out, "created account", email)
			}
			if res.ProjectID != "" {
				fmt.Fprintln(out, "created demo project", res.ProjectID)
			}
			return nil
		}),
	}
}

func newClearCmd(withApp appRunner) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every row of every table (never in production)",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			if !confirmed {
				return errors.New("refusing to clear without --yes")
			}
			if err := a.Seeder.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all data cleared")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm deleting all data")

	return cmd
}

func newProjectsCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List every project with its phase and membership",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tPHASE\tCLIENTS\tDOCUMENTS")

			for _, p := range a.Projects.List(cmd.Context()) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
					p.ID, p.Name, p.Status, p.CurrentPhase, len(p.ClientIDs), len(p.Documents))
			}
			return tw.Flush()
		}),
	}
}

// newVisibleCmd signs in through the controller and prints the projects
// that account would see.
func newVisibleCmd(withApp appRunner) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "visible",
		Short: "Sign in as a user and list the projects visible to them",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			ctrl := controller.New(a.Session, a.Users, a.Projects, a.Logger)
			ctrl.Start(cmd.Context())
			defer ctrl.Close()

			if err := ctrl.SignIn(cmd.Context(), email, password); err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			ctrl.Wait()
			defer ctrl.SignOut(context.Background())

			snap := ctrl.Snapshot()
			if snap.State != controller.StateAuthenticated || snap.CurrentUser == nil {
				return fmt.Errorf("signed in but state is %s", snap.State)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s): %d visible projects, %d users\n",
				snap.CurrentUser.Email, snap.CurrentUser.Role, len(snap.Projects), len(snap.Users))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tPHASE")
			for _, p := range snap.Projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Status, p.CurrentPhase)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newResetPasswordCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password EMAIL",
		Short: "Send a password recovery mail",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			if !a.Session.ResetPasswordForEmail(cmd.Context(), args[0]) {
				return errors.New("recovery mail could not be sent")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "recovery mail sent to", args[0])
			return nil
		}),
	}
}

func newKeygenCmd() *cobra.Command {
	var privatePath, publicPath string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the ES256 key pair used to sign access tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := identity.GenerateKeyPair(privatePath, publicPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privatePath, publicPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&privatePath, "private", "keys/private.pem", "private key output path")
	cmd.Flags().StringVar(&publicPath, "public", "keys/public.pem", "public key output path")

	return cmd
}
