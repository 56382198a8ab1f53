// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cymatics/cmd"
	applog "cymatics/internal/log"
	"cymatics/pkg/build"
)

// main wires process concerns around the CLI:
//
//  1. Build information from ldflags (development builds keep defaults)
//  2. A context cancelled by SIGINT or SIGTERM so live sessions shut down
//     cleanly
//  3. Command dispatch
func main() {
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build information unavailable: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
}
