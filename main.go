package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aus-land-clearing/landcover/cmd"
	"github.com/aus-land-clearing/landcover/internal/buildinfo"
	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/telemetry"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := buildinfo.NewContext(version, buildDate)
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings, build)

	err := rootCmd.ExecuteContext(ctx)
	telemetry.Flush(2 * time.Second)
	_ = logger.Global().Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
