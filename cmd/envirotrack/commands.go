package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"envirotrack/internal/core"
	"envirotrack/internal/httpapi"
	"envirotrack/pkg/domain"
)

const closeTimeout = 15 * time.Second

func newRootCmd() *cobra.Command {
	var opts globalOptions
	root := &cobra.Command{
		Use:           "envirotrack",
		Short:         "Environmental compliance record keeping",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to envirotrack.toml")
	root.PersistentFlags().StringVar(&opts.storage, "storage", "", "Storage driver override (memory, file, sqlite, postgres, redis)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override")

	root.AddCommand(
		newWorkspaceCmd(&opts),
		newRecordCmd(&opts),
		newDashboardCmd(&opts),
		newExportCmd(&opts),
		newImportCmd(&opts),
		newCO2Cmd(),
		newServeCmd(&opts),
	)
	return root
}

type runFunc func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error

// withApp opens the application around fn and closes it afterwards.
func withApp(opts *globalOptions, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := openApp(ctx, *opts)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if cerr := a.close(closeCtx); cerr != nil && err == nil {
				err = fmt.Errorf("persist state: %w", cerr)
			}
		}()
		return fn(ctx, a, cmd, args)
	}
}

func newWorkspaceCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "workspace", Aliases: []string{"ws"}, Short: "Manage workspaces"}

	var p domain.Profile
	profileFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&p.Name, "name", "", "Analyst full name")
		c.Flags().StringVar(&p.Title, "title", "", "Professional title")
		c.Flags().StringVar(&p.Facility, "facility", "", "Facility or company name")
		c.Flags().StringVar(&p.RegulatoryID, "epa-id", "", "EPA / regulatory id")
		c.Flags().StringVar(&p.Agency, "agency", "", "Primary agency")
		c.Flags().StringVar(&p.State, "state", "", "State")
		c.Flags().StringVar(&p.Certifications, "certs", "", "Certifications")
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			return printWorkspaces(cmd.OutOrStdout(), a.svc.Workspaces(ctx))
		}),
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create and open a workspace",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			id, err := a.svc.CreateWorkspace(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
	profileFlags(create)

	profile := &cobra.Command{
		Use:   "profile <id>",
		Short: "Replace a workspace profile",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			return a.svc.SaveProfile(ctx, args[0], p)
		}),
	}
	profileFlags(profile)

	open := &cobra.Command{
		Use:   "open <id>",
		Short: "Open a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			return a.svc.OpenWorkspace(ctx, args[0])
		}),
	}

	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Close the open workspace",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			a.svc.CloseWorkspace(ctx)
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workspace and all its records",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			deleted, err := a.svc.DeleteWorkspace(ctx, args[0])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(cmd.ErrOrStderr(), "workspace %s not found\n", args[0])
			}
			return nil
		}),
	}

	cmd.AddCommand(list, create, profile, open, closeCmd, del)
	return cmd
}

func printWorkspaces(w io.Writer, list []core.WorkspaceSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tFACILITY\tANALYST\tRECORDS\tMODIFIED")
	for _, ws := range list {
		mark := ""
		if ws.Open {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", mark, ws.ID, ws.Profile.Facility, ws.Profile.Name, ws.Records, ws.Modified)
	}
	return tw.Flush()
}

// parseFields turns key=value arguments into record fields.
func parseFields(args []string) (domain.Record, error) {
	rec := make(domain.Record, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("field %q must be key=value", arg)
		}
		rec[strings.TrimSpace(k)] = v
	}
	return rec, nil
}

func newRecordCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "record", Aliases: []string{"rec"}, Short: "Manage records of the open workspace"}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list <collection>",
		Short: "List records with their compliance badge",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			key := domain.CollectionKey(args[0])
			recs, err := a.svc.Records(ctx, key)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			return printRecords(cmd.OutOrStdout(), a.svc, key, recs)
		}),
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	add := &cobra.Command{
		Use:   "add <collection> key=value...",
		Short: "Add a record",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			rec, err := a.svc.AddRecord(ctx, domain.CollectionKey(args[0]), fields)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID())
			return nil
		}),
	}

	edit := &cobra.Command{
		Use:   "edit <collection> <id> key=value...",
		Short: "Merge fields into a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[2:])
			if err != nil {
				return err
			}
			changed, err := a.svc.EditRecord(ctx, domain.CollectionKey(args[0]), args[1], fields)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.ErrOrStderr(), "record %s not found\n", args[1])
			}
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			deleted, err := a.svc.DeleteRecord(ctx, domain.CollectionKey(args[0]), args[1])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(cmd.ErrOrStderr(), "record %s not found\n", args[1])
			}
			return nil
		}),
	}

	cmd.AddCommand(list, add, edit, del)
	return cmd
}

func printRecords(w io.Writer, svc *core.Service, key domain.CollectionKey, recs []domain.Record) error {
	schema, _ := svc.Schemas().Lookup(key)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"ID", "BADGE"}
	for _, f := range schema.Fields {
		header = append(header, strings.ToUpper(f.Name))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range recs {
		badge := svc.Badge(key, rec)
		row := []string{rec.ID(), string(badge.Level)}
		for _, f := range schema.Fields {
			row = append(row, rec.Text(f.Name))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDashboardCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show KPIs and compliance alerts for the open workspace",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			dash, err := a.svc.Dashboard(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, dash)
			}
			fmt.Fprintf(out, "Active leaks:            %d\n", dash.ActiveLeaks)
			fmt.Fprintf(out, "Total CO2e (MT):         %s\n", dash.TotalCO2e)
			fmt.Fprintf(out, "Open incidents:          %d\n", dash.OpenIncidents)
			fmt.Fprintf(out, "Permits expiring:        %d\n", dash.PermitsExpiring)
			fmt.Fprintf(out, "Open corrective actions: %d\n", dash.OpenCorrectiveActions)
			fmt.Fprintf(out, "RCRA near limit:         %d\n", dash.RCRANearLimit)
			fmt.Fprintf(out, "Stack tests failing:     %d\n", dash.StackTestsFailing)
			fmt.Fprintf(out, "Oil storage (bbl):       %s\n", dash.TotalOilStorage)
			if len(dash.Alerts) == 0 {
				fmt.Fprintln(out, "\nNo compliance alerts.")
				return nil
			}
			fmt.Fprintln(out)
			for _, alert := range dash.Alerts {
				fmt.Fprintf(out, "[%s] %s (%s)\n", alert.Severity.Label(), alert.Message, alert.Module)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the dashboard as JSON")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "export", Short: "Export workspace data"}

	var (
		output    string
		archive   bool
		workspace string
	)
	backup := &cobra.Command{
		Use:   "backup",
		Short: "Write the JSON backup of a workspace",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if archive {
				info, err := a.svc.ArchiveBackup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), info.Key)
				return nil
			}
			data, err := a.svc.ExportBackup(ctx, workspace)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, append(data, '\n'))
		}),
	}
	backup.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	backup.Flags().BoolVar(&archive, "archive", false, "File the backup in the export archive")
	backup.Flags().StringVar(&workspace, "workspace", "", "Workspace id (default: open workspace)")

	csvCmd := &cobra.Command{
		Use:   "csv <collection>",
		Short: "Write one collection as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			key := domain.CollectionKey(args[0])
			if archive {
				info, err := a.svc.ArchiveCSV(ctx, key)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), info.Key)
				return nil
			}
			var buf strings.Builder
			if err := a.svc.ExportCSV(ctx, &buf, key); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, []byte(buf.String()))
		}),
	}
	csvCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	csvCmd.Flags().BoolVar(&archive, "archive", false, "File the CSV in the export archive")

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived exports",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			infos, err := a.svc.Exports(ctx, workspace)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format(time.RFC3339))
			}
			return tw.Flush()
		}),
	}
	list.Flags().StringVar(&workspace, "workspace", "", "Only list exports of this workspace")

	cmd.AddCommand(backup, csvCmd, list)
	return cmd
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	var fromArchive bool
	cmd := &cobra.Command{
		Use:   "import <file|archive-key>",
		Short: "Import a workspace backup as a new workspace",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			var (
				id  string
				err error
			)
			if fromArchive {
				id, err = a.svc.ImportArchived(ctx, args[0])
			} else {
				var data []byte
				data, err = readInput(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				id, err = a.svc.ImportWorkspace(ctx, data)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&fromArchive, "archive", false, "Treat the argument as an export archive key")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path) // #nosec G304 -- path is supplied by the operator
}

func newCO2Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "co2 <mmbtu> <fuel>",
		Short: "Estimate combustion CO2 (metric tons) from annual heat input",
		Long:  "Fuels: " + strings.Join(core.Fuels(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mmbtu, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("mmbtu %q is not a number", args[0])
			}
			co2, err := core.CombustionCO2(mmbtu, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), co2.StringFixed(2))
			return nil
		},
	}
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local JSON API",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			if a.cfg.App.Env == "production" {
				gin.SetMode(gin.ReleaseMode)
			}
			router := httpapi.NewRouter(a.svc, httpapi.Options{Logger: a.log.Named("http"), Gatherer: a.registry})
			err := httpapi.NewServer(addr, router, a.cfg.HTTP.ShutdownTimeout, a.log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
