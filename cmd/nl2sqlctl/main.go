package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codewithzichao/nl2sql/internal/cli/nl2sqlctl"
	"github.com/codewithzichao/nl2sql/internal/config"
)

func main() {
	cfg, err := config.LoadFromEnv("nl2sqlctl")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := nl2sqlctl.Run(ctx, os.Args[1:], nl2sqlctl.Options{
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	stop()
	os.Exit(code)
}
