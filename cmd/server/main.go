package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "catalog-server",
		Short: "Realtime marketplace catalog over WebSocket",
		Long: `catalog-server pushes catalog changes to connected WebSocket clients.
Clients can list and add products, subscribe to channels and publish
notifications to other subscribers. New rows written by other services are
picked up by polling the product table.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
