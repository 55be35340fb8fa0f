package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/trajalign/internal/cli"
	"github.com/banshee-data/trajalign/internal/fsutil"
	"github.com/banshee-data/trajalign/internal/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(fsutil.OSFileSystem{}, timeutil.RealClock{}).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
