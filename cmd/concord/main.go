// Package main is the entry point for the concord consistency coordinator.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grindlemire/graft"
	"go.trai.ch/concord/cmd/concord/commands"
	"go.trai.ch/concord/internal/app"
	"go.trai.ch/concord/internal/ui/output"
	_ "go.trai.ch/concord/internal/wiring"
)

// drainTimeout bounds how long a one-shot command waits for queued propagation on exit.
const drainTimeout = 10 * time.Second

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stdout, stderr io.Writer,
	provider ComponentProvider,
	opts ...func(*app.App),
) int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize application components
	components, cleanup, err := provider(ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	defer cleanup()

	if wd, err := os.Getwd(); err == nil {
		components.App.WithWorkDir(wd)
	}
	for _, opt := range opts {
		opt(components.App)
	}

	// 2. Interface - CLI
	cli := commands.New(components.App, commands.WithColorProfile(output.WriterProfile(stdout)))
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	// 3. Execution
	code := 0
	if err := cli.Execute(ctx); err != nil {
		components.Logger.Error(err)
		code = 1
	}

	// 4. Drain propagation started by the command.
	closeCtx, cancelClose := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancelClose()
	if err := components.App.Close(closeCtx); err != nil {
		components.Logger.Error(err)
		code = 1
	}
	return code
}
