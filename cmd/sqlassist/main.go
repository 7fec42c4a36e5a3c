package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sqlassist/sqlassist/internal/cli/sqlassistcmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := sqlassistcmd.Execute(ctx)
	stop()
	os.Exit(code)
}
