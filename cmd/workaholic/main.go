// Command workaholic is the command-line client. It signs in against a
// workaholic server and manages the signed-in user's groups.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmynk/workaholic/internal/config"
	"github.com/mmynk/workaholic/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "workaholic:", err)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	logger, logCloser := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, http.DefaultClient, logger, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.execute(ctx, os.Args[1:])
}
