package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"tenantdb/internal/models"
	"tenantdb/internal/services"
)

func orDefault(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

// printTenant renders the Field/Value summary of one tenant.
func printTenant(w io.Writer, t *models.Tenant) error {
	database := t.Database.Name
	if database == "" {
		database = "N/A"
	}
	domain := t.PrimaryDomain()
	if domain == "" {
		domain = "Not provided"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tVALUE")
	fmt.Fprintf(tw, "ID\t%s\n", t.ID)
	fmt.Fprintf(tw, "Name\t%s\n", t.Name)
	fmt.Fprintf(tw, "Email\t%s\n", t.Email)
	fmt.Fprintf(tw, "Phone\t%s\n", orDefault(t.Phone, "Not provided"))
	fmt.Fprintf(tw, "Address\t%s\n", orDefault(t.Address, "Not provided"))
	fmt.Fprintf(tw, "Database\t%s\n", database)
	fmt.Fprintf(tw, "Domain\t%s\n", domain)
	return tw.Flush()
}

// printTenantList renders one row per tenant.
func printTenantList(w io.Writer, tenants []*models.Tenant) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tSTATUS\tDATABASE\tDOMAIN\tLAST ERROR")
	for _, t := range tenants {
		status := "active"
		if !t.IsActive() {
			status = "inactive"
		}
		domain := t.PrimaryDomain()
		if domain == "" {
			domain = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Name, t.Email, status, t.Database.Name, domain, orDefault(t.Provisioning.LastError, "-"))
	}
	return tw.Flush()
}

// printReport writes completed steps to out and failures to errOut.
func (c *cli) printReport(report *services.ProvisionReport) {
	for _, step := range report.Steps {
		switch step.Status {
		case services.StepDone:
			line := fmt.Sprintf("✓ %s", step.Step)
			if step.Detail != "" {
				line += " (" + step.Detail + ")"
			}
			fmt.Fprintln(c.out, line)
		case services.StepFailed:
			if step.Step == services.StepDatabase {
				fmt.Fprintf(c.errOut, "Failed to create database: %v\n", step.Err)
			} else {
				fmt.Fprintf(c.errOut, "Warning: %s failed: %v\n", step.Step, step.Err)
			}
		}
	}
}
