package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/warp/standing-orders/factory"
	"github.com/warp/standing-orders/recurring"
)

// NewTemplatesCommand creates the templates command group.
func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect templates",
	}
	cmd.AddCommand(newTemplatesListCommand(rootOpts))
	return cmd
}

func newTemplatesListCommand(rootOpts *RootOptions) *cobra.Command {
	var status, customer string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter recurring.ListFilter
			if status != "" {
				s := recurring.Status(strings.ToLower(status))
				if !s.Valid() {
					return fmt.Errorf("--status: unknown status %q", status)
				}
				filter.Status = &s
			}
			filter.CustomerNameContains = customer

			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			templates, err := a.templates.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list templates: %w", err)
			}
			if len(templates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No templates found.")
				return nil
			}
			return printTemplates(cmd.OutOrStdout(), templates)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (active, paused, cancelled)")
	cmd.Flags().StringVar(&customer, "customer", "", "filter by customer name substring")
	return cmd
}

func printTemplates(out io.Writer, templates []*recurring.Template) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tINTERVAL\tNEXT SHIP\tNEXT DELIVERY\tCUSTOMER\tMETHOD")
	for _, t := range templates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, statusColor(t.Status), t.Interval, t.NextShippingDate, t.NextDeliveryDate,
			t.Customer.Name, t.Shipping.DeliveryMethod)
	}
	return w.Flush()
}

func statusColor(s recurring.Status) string {
	switch s {
	case recurring.StatusActive:
		return color.New(color.FgGreen).Sprint(s)
	case recurring.StatusPaused:
		return color.New(color.FgYellow).Sprint(s)
	default:
		return color.New(color.FgRed).Sprint(s)
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create templates from a JSON array",
		Long: `Read a JSON array of templates (the API create format, see factory/) and
create each one. The whole file is validated before anything is written.

Example:
  standing-orders import ./templates.json
  standing-orders import ./templates.json --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			parsed, err := factory.ParseTemplates(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "✓ %d templates valid (dry run, nothing written)\n", len(parsed))
				return nil
			}

			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			for i, p := range parsed {
				id, err := factory.Create(cmd.Context(), a.templates, p)
				if err != nil {
					return fmt.Errorf("template %d: %w (%d created before it)", i+1, err, i)
				}
				fmt.Fprintf(out, "✓ Created template %s (%s, %s)\n", id, p.Params.Customer.Name, p.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	return cmd
}
