// Command movr populates a MovR database and simulates ride-sharing traffic against it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
)

func main() {
	os.Exit(submain(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func submain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "movr: %s\n", err)
		return exitCodeFailure
	}

	return exitCodeSuccess
}
