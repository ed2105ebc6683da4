package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/serownia/internal/report"
)

// ReportOptions holds flags for the report commands.
type ReportOptions struct {
	*RootOptions
	Output string
	Filter string
}

// ReportSummary is the JSON payload of report xlsx.
type ReportSummary struct {
	Path      string `json:"path"`
	Protocols int    `json:"protocols"`
	Additives int    `json:"additives"`
	Receipts  int    `json:"receipts"`
	Items     int    `json:"items"`
}

// NewReportCommand creates the report command group.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export production and warehouse reports",
	}

	xlsx := &cobra.Command{
		Use:   "xlsx",
		Short: "Write an XLSX workbook with protocols, additives, registers and totals",
		Long: `Write a workbook with one sheet per section: protocols, additives used,
the additives and packaging registers, and received totals per item.

Without --output the file goes to report.dir as raport_<date>.xlsx.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return runReportXLSX(ctx, e, opts)
			})
		},
	}
	xlsx.Flags().StringVarP(&opts.Output, "output", "o", "", "output file")
	xlsx.Flags().StringVar(&opts.Filter, "filter", "", "keep protocols whose series or product contains this text")

	cmd.AddCommand(xlsx)
	return cmd
}

func runReportXLSX(ctx context.Context, e *env, opts *ReportOptions) error {
	path := opts.Output
	if path == "" {
		path = filepath.Join(e.cfg.Report.Dir, "raport_"+e.today()+".xlsx")
	}

	d, err := report.Collect(ctx, e.store, e.kindOf, opts.Filter)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, d); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return e.out.report(ErrCodeIO, ExitCommandError, err)
	}

	sum := ReportSummary{
		Path:      path,
		Protocols: len(d.Protocols),
		Additives: len(d.Additives),
		Receipts:  len(d.AdditivesRegister) + len(d.PackagingRegister),
		Items:     len(d.Totals),
	}
	e.logger.Info("report written", zap.String("path", path), zap.Int("protocols", sum.Protocols))
	return e.done(sum, "Zapisano raport %s (%d protokołów, %d przyjęć).", path, sum.Protocols, sum.Receipts)
}
