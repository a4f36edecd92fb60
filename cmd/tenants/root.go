package main

import (
	"io"

	"tenantdb/internal/app"
	"tenantdb/pkg/config"
	"tenantdb/pkg/logger"

	"github.com/spf13/cobra"
)

// cli carries the lazily built application shared by the subcommands.
type cli struct {
	out    io.Writer
	errOut io.Writer
	app    *app.App
	build  func() (*app.App, error)
}

// newRootCmd builds the command tree. The application is built on first
// use by a subcommand; the caller closes it with cli.close.
func newRootCmd(out, errOut io.Writer, build func() (*app.App, error)) (*cobra.Command, *cli) {
	c := &cli{out: out, errOut: errOut, build: build}

	rootCmd := &cobra.Command{
		Use:           "tenants",
		Short:         "Provision and maintain tenants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.AddCommand(
		c.createCmd(),
		c.listCmd(),
		c.resumeCmd(),
		c.migrateCmd(),
		c.syncPermissionsCmd(),
		c.statusCmd("activate", true),
		c.statusCmd("deactivate", false),
	)
	return rootCmd, c
}

func buildApp() (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(cfg); err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func (c *cli) application() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := c.build()
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}
