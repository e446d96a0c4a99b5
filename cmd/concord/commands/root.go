// Package commands implements the CLI commands for concord.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.trai.ch/concord/internal/app"
	"go.trai.ch/concord/internal/build"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/engine/reconcile"
	"go.trai.ch/concord/internal/ui/output"
)

// CLI represents the command line interface for concord.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	profile termenv.Profile
}

// Application represents the application logic interface.
type Application interface {
	WriteEntity(ctx context.Context, t domain.EntityType, id string, payload domain.Payload) (app.WriteResult, error)
	DeleteEntity(ctx context.Context, t domain.EntityType, id string) (app.WriteResult, error)
	ReadEntity(ctx context.Context, t domain.EntityType, id string) (app.ReadResult, error)
	Invalidate(ctx context.Context, t domain.EntityType, id string) error
	Reconcile(ctx context.Context) (reconcile.Report, error)
	Discrepancies(ctx context.Context) ([]domain.Discrepancy, error)
	Suppress(ctx context.Context, t domain.EntityType, id string, role domain.StoreRole) error
	DeadLetters(ctx context.Context) ([]domain.DeadLetter, error)
	ReplayDeadLetters(ctx context.Context) (app.ReplayReport, error)
	Stats(ctx context.Context) (app.Stats, error)
	Serve(ctx context.Context, opts app.ServeOptions) error
}

// Option configures a CLI.
type Option func(*CLI)

// WithColorProfile sets the color profile used for command output.
func WithColorProfile(p termenv.Profile) Option {
	return func(c *CLI) {
		c.profile = p
	}
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "concord",
		Short:         "Keep canonical, graph, cache and analytics stores consistent",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
		profile: termenv.Ascii,
	}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newTopCmd())
	rootCmd.AddCommand(c.newWriteCmd())
	rootCmd.AddCommand(c.newReadCmd())
	rootCmd.AddCommand(c.newDeleteCmd())
	rootCmd.AddCommand(c.newInvalidateCmd())
	rootCmd.AddCommand(c.newReconcileCmd())
	rootCmd.AddCommand(c.newDiscrepanciesCmd())
	rootCmd.AddCommand(c.newSuppressCmd())
	rootCmd.AddCommand(c.newDeadLettersCmd())
	rootCmd.AddCommand(c.newStatsCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// SetIn sets the input stream for the root command. Used for testing.
func (c *CLI) SetIn(in io.Reader) {
	c.rootCmd.SetIn(in)
}

func (c *CLI) printer(cmd *cobra.Command) *output.Printer {
	return output.NewPrinter(cmd.OutOrStdout(), c.profile)
}

// entityArgs parses the "<type> <id>" positional arguments.
func entityArgs(args []string) (domain.EntityType, string, error) {
	t, err := domain.ParseEntityType(args[0])
	if err != nil {
		return "", "", err
	}
	return t, args[1], nil
}
