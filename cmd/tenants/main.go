// Command tenants provisions and maintains tenants and their databases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd, c := newRootCmd(os.Stdout, os.Stderr, buildApp)
	err := rootCmd.ExecuteContext(ctx)
	c.close()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
