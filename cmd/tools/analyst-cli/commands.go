package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"marketing-analyst/internal/agent"
	"marketing-analyst/internal/analytics/executor"
	"marketing-analyst/internal/analytics/synthesizer"
	"marketing-analyst/internal/analytics/templates"
	"marketing-analyst/internal/app"
	"marketing-analyst/internal/common/config"
	"marketing-analyst/internal/common/database"
	"marketing-analyst/internal/models"
)

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the approved query templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := newTable(cmd.OutOrStdout(), []string{"Template", "Description", "Columns"})
			for _, name := range templates.Names() {
				tmpl, err := templates.Get(string(name))
				if err != nil {
					return err
				}
				table.Append([]string{string(name), tmpl.Description, strings.Join(tmpl.Columns, ", ")})
			}
			table.Render()
			return nil
		},
	}
}

func newQueryCmd(flags *globalFlags) *cobra.Command {
	var filters models.Filters

	cmd := &cobra.Command{
		Use:   "query TEMPLATE",
		Short: "Run a query template against the dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			dataset, err := database.OpenDataset(cfg.Database)
			if err != nil {
				return err
			}
			defer dataset.Close()

			f := filters.WithDefaults(cfg.Agent.DefaultDateFrom, cfg.Agent.DefaultDateTo)
			if err := f.Validate(); err != nil {
				return err
			}
			result, err := executor.New(dataset, cfg.Database, log).RunTemplate(ctx, strings.ToUpper(args[0]), f)
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), result.Columns, result.RowsAsArrays())
			fmt.Fprintf(cmd.OutOrStdout(), "%d row(s)\n", result.RowCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&filters.DateFrom, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filters.DateTo, "to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filters.Segment, "segment", "", "Segment filter")
	cmd.Flags().StringVar(&filters.Channel, "channel", "", "Channel filter")
	return cmd
}

func newSchemaCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema description handed to the SQL drafting model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			src := synthesizer.NewSchemaSource(cfg.Agent.SchemaPath, config.GetDuration(cfg.Agent.SchemaCacheTTL), log)
			fmt.Fprintln(cmd.OutOrStdout(), src.Describe())
			return nil
		},
	}
}

func newToolsCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show the tool catalog, or write it with --out",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := agent.Catalog(agent.DefaultTools(nil, nil), time.Now())
			if err := cat.Validate(); err != nil {
				return err
			}
			if out != "" {
				if err := cat.Save(out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tools to %s\n", len(cat.Tools), out)
				return nil
			}

			table := newTable(cmd.OutOrStdout(), []string{"Tool", "Category", "Required", "Error codes"})
			for _, t := range cat.Tools {
				table.Append([]string{t.Name, t.Category, requiredArgs(t.InputSchema), strings.Join(t.ErrorCodes, ", ")})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the catalog JSON to this path")
	return cmd
}

func newAskCmd(flags *globalFlags) *cobra.Command {
	var filters models.Filters

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask the assistant a question and print the answer and tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			a, err := app.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.Orchestrator.Chat(ctx, models.ChatRequest{Message: strings.Join(args, " "), Filters: filters})
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, resp.Answer)
			for _, t := range resp.Tables {
				fmt.Fprintf(w, "\n%s\n", t.Name)
				renderResult(w, t.Columns, t.Rows)
			}
			for _, p := range resp.Plots {
				fmt.Fprintf(w, "\nChart: %s (%s, %d points)\n", p.Title, p.ChartType, p.DataPoints)
			}
			if code, ok := resp.Extras["error_code"]; ok {
				return fmt.Errorf("assistant failed with %v", code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filters.DateFrom, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filters.DateTo, "to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filters.Segment, "segment", "", "Segment filter")
	cmd.Flags().StringVar(&filters.Channel, "channel", "", "Channel filter")
	return cmd
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func renderResult(w io.Writer, columns []string, rows [][]interface{}) {
	table := newTable(w, columns)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		table.Append(cells)
	}
	table.Render()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.2f", x)
	default:
		return fmt.Sprint(x)
	}
}

func requiredArgs(schema map[string]interface{}) string {
	req, _ := schema["required"].([]interface{})
	names := make([]string, 0, len(req))
	for _, r := range req {
		names = append(names, fmt.Sprint(r))
	}
	return strings.Join(names, ", ")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
