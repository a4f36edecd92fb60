package main

import (
	"fmt"

	"tenantdb/internal/services"

	"github.com/spf13/cobra"
)

type createFlags struct {
	name, email, phone, address, domain string
	dbHost, dbPort, dbUser, dbPassword  string
	migrate, seedPermissions            bool
	companyName, companyEmail           string
}

func (c *cli) createCmd() *cobra.Command {
	var f createFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant with its own database",
		Long: `Registers a tenant in the central database and creates its database.
With --migrate the tenant schema is created; --company-name adds a default
company and --seed-permissions copies the master permission catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := services.CreateTenantInput{
				Name:       f.name,
				Email:      f.email,
				Domain:     f.domain,
				DBHost:     f.dbHost,
				DBPort:     f.dbPort,
				DBUser:     f.dbUser,
				DBPassword: f.dbPassword,
			}
			if cmd.Flags().Changed("phone") {
				input.Phone = &f.phone
			}
			if cmd.Flags().Changed("address") {
				input.Address = &f.address
			}
			opts := services.ProvisionOptions{
				Migrate:         f.migrate,
				SeedPermissions: f.seedPermissions,
				CompanyName:     f.companyName,
				CompanyEmail:    f.companyEmail,
			}
			return c.runCreate(cmd, input, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "tenant name (required)")
	flags.StringVar(&f.email, "email", "", "tenant email (required)")
	flags.StringVar(&f.phone, "phone", "", "tenant phone")
	flags.StringVar(&f.address, "address", "", "tenant address")
	flags.StringVar(&f.domain, "domain", "", "tenant domain")
	flags.StringVar(&f.dbHost, "db-host", "", "tenant database host (default DB_HOST)")
	flags.StringVar(&f.dbPort, "db-port", "", "tenant database port (default DB_PORT)")
	flags.StringVar(&f.dbUser, "db-user", "", "tenant database user (default DB_USER)")
	flags.StringVar(&f.dbPassword, "db-password", "", "tenant database password (default DB_PASSWORD)")
	flags.BoolVar(&f.migrate, "migrate", false, "run tenant migrations")
	flags.StringVar(&f.companyName, "company-name", "", "create a default company, requires --migrate")
	flags.StringVar(&f.companyEmail, "company-email", "", "default company email (default tenant email)")
	flags.BoolVar(&f.seedPermissions, "seed-permissions", false, "sync master permissions, requires --migrate")
	return cmd
}

func (c *cli) runCreate(cmd *cobra.Command, input services.CreateTenantInput, opts services.ProvisionOptions) error {
	// reject bad flags before the central database is opened or migrated
	if err := services.ValidateProvision(&input, opts); err != nil {
		return err
	}
	a, err := c.application()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Creating tenant record...")
	report, err := a.Provision.Provision(cmd.Context(), input, opts)
	if report != nil {
		c.printReport(report)
	}
	if err != nil {
		if report != nil {
			fmt.Fprintf(c.errOut, "Tenant record %s was kept for manual remediation, rerun with: tenants resume --id %s\n",
				report.Tenant.ID, report.Tenant.ID)
		}
		return err
	}

	fmt.Fprintf(c.out, "Tenant '%s' created successfully!\n", report.Tenant.Name)
	return printTenant(c.out, report.Tenant)
}
