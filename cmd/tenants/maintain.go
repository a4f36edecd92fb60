package main

import (
	"fmt"

	"tenantdb/internal/models"
	"tenantdb/internal/services"
	"tenantdb/pkg/pagination"

	"github.com/spf13/cobra"
)

func (c *cli) listCmd() *cobra.Command {
	var (
		activeOnly bool
		page       pagination.PageParams
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants with their provisioning state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			if !page.Normalize().All() {
				tenants, info, err := a.Tenants.Page(cmd.Context(), activeOnly, page)
				if err != nil {
					return err
				}
				if err := printTenantList(c.out, tenants); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Page %d of %d (%d tenants)\n", info.Page, info.TotalPages, info.Total)
				return nil
			}

			var tenants []*models.Tenant
			if activeOnly {
				tenants, err = a.Tenants.ListActive(cmd.Context())
			} else {
				tenants, err = a.Tenants.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printTenantList(c.out, tenants)
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active tenants")
	cmd.Flags().IntVar(&page.Page, "page", 0, "page to show, 0 lists every tenant")
	cmd.Flags().IntVar(&page.PageSize, "page-size", pagination.DefaultPageSize, "tenants per page")
	return cmd
}

func (c *cli) resumeCmd() *cobra.Command {
	var (
		id   string
		opts services.ProvisionOptions
	)
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Rerun database creation and the selected steps for an existing tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.ValidateOptions(opts); err != nil {
				return err
			}
			a, err := c.application()
			if err != nil {
				return err
			}
			report, err := a.Provision.Resume(cmd.Context(), id, opts)
			if report != nil {
				c.printReport(report)
			}
			if err != nil {
				return err
			}
			return printTenant(c.out, report.Tenant)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&id, "id", "", "tenant id")
	flags.BoolVar(&opts.Migrate, "migrate", false, "run tenant migrations")
	flags.BoolVar(&opts.SeedPermissions, "seed-permissions", false, "sync master permissions, requires --migrate")
	flags.StringVar(&opts.CompanyName, "company-name", "", "create a default company, requires --migrate")
	flags.StringVar(&opts.CompanyEmail, "company-email", "", "default company email")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// forEachTenant runs fn for the given ids, or for every active tenant when
// none are given. Failures are reported per tenant and counted.
func (c *cli) forEachTenant(cmd *cobra.Command, ids []string, fn func(id string) error) error {
	a, err := c.application()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		tenants, err := a.Tenants.ListActive(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range tenants {
			ids = append(ids, t.ID)
		}
	}

	failed := 0
	for _, id := range ids {
		if err := fn(id); err != nil {
			failed++
			fmt.Fprintf(c.errOut, "✗ %s: %v\n", id, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tenants failed", failed, len(ids))
	}
	return nil
}

func (c *cli) migrateCmd() *cobra.Command {
	var ids []string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run tenant migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.forEachTenant(cmd, ids, func(id string) error {
				if err := c.app.Provision.Migrate(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "✓ %s migrated\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&ids, "tenants", nil, "tenant ids (default all active tenants)")
	return cmd
}

func (c *cli) syncPermissionsCmd() *cobra.Command {
	var ids []string
	cmd := &cobra.Command{
		Use:   "sync-permissions",
		Short: "Copy the master permission catalog into tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.forEachTenant(cmd, ids, func(id string) error {
				n, err := c.app.Provision.SyncPermissions(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "✓ %s synced %d permissions\n", id, n)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&ids, "tenants", nil, "tenant ids (default all active tenants)")
	return cmd
}

func (c *cli) statusCmd(name string, active bool) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Mark a tenant %sd", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			if err := a.Tenants.SetStatus(cmd.Context(), id, active); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Tenant %s %sd\n", id, name)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "tenant id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
