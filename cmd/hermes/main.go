package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/lunagic/environment-go/environment"
	"github.com/lunagic/hermes/internal/cli"
)

func main() {
	config := cli.NewConfig()
	if err := environment.New().Decode(&config); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(config).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
