package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/serownia/internal/dosage"
	"github.com/roach88/serownia/internal/protocol"
)

// ProtocolOptions holds flags for the protocol commands.
type ProtocolOptions struct {
	*RootOptions
	Output    string
	Filter    string
	Purge     bool
	KeepDoses bool
	Month     int
	Year      int
	SetFields map[string]string
}

// NewProtocolCommand creates the protocol command group.
func NewProtocolCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProtocolOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "Create, edit and list production protocols",
		Long: `A protocol records one production run: date, series number, the
process parameters of the product's kind, the additives used and the lots
produced.

Protocols are edited as YAML: "protocol new" or "protocol export" writes the
form, "protocol save" validates it, recomputes the doses from the raw
material volume and stores everything in one transaction.

Example:
  serownia protocol new Gouda -o run.yaml
  serownia protocol save run.yaml
  serownia protocol export 12 -o run.yaml`,
	}

	newCmd := &cobra.Command{
		Use:   "new <product>",
		Short: "Start a protocol for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				product, err := e.productRef(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := e.protocols.New(ctx, product.ID)
				if err != nil {
					return err
				}
				if err := applyFields(e, p, opts.SetFields); err != nil {
					return err
				}
				return e.emitProtocol(p, opts.Output)
			})
		},
	}
	newCmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the form as YAML to this file")
	newCmd.Flags().StringToStringVar(&opts.SetFields, "set", nil, "prefill fields, e.g. --set milk_amount=150")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				id, err := parseID("protokołu", args[0])
				if err != nil {
					return err
				}
				p, err := e.protocols.Load(ctx, id)
				if err != nil {
					return err
				}
				return e.emitProtocol(p, "")
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved protocols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				records, err := e.protocols.List(ctx, opts.Filter)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{idString(r.ID), r.Date, r.Series, r.ProductName})
				}
				return e.table(records, []string{"ID", "DATA", "SERIA", "PRODUKT"}, rows)
			})
		},
	}
	list.Flags().StringVar(&opts.Filter, "filter", "", "keep protocols whose series or product contains this text")

	save := &cobra.Command{
		Use:   "save <file.yaml>",
		Short: "Validate and store a protocol form",
		Long: `Read a protocol form written by "protocol new" or "protocol export" and
store it. A form with an id updates that protocol; id 0 creates a new one.
Doses are recomputed from the volume field unless --keep-doses is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return e.out.report(ErrCodeIO, ExitCommandError, err)
				}
				p, err := protocol.UnmarshalYAML(data)
				if err != nil {
					return asInput(err)
				}
				if err := applyFields(e, p, opts.SetFields); err != nil {
					return err
				}
				if !opts.KeepDoses {
					if err := e.protocols.Recalculate(p); err != nil {
						return err
					}
				}
				created := p.IsNew()
				id, err := e.protocols.Save(ctx, p)
				if err != nil {
					return err
				}
				verb := "Zapisano"
				if created {
					verb = "Utworzono"
				}
				return e.done(p, "%s protokół %d (seria %s).", verb, id, p.Series)
			})
		},
	}
	save.Flags().BoolVar(&opts.KeepDoses, "keep-doses", false, "store the doses as written")
	save.Flags().StringToStringVar(&opts.SetFields, "set", nil, "override fields before saving")

	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a saved protocol as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				id, err := parseID("protokołu", args[0])
				if err != nil {
					return err
				}
				p, err := e.protocols.Load(ctx, id)
				if err != nil {
					return err
				}
				data, err := protocol.MarshalYAML(p)
				if err != nil {
					return err
				}
				if opts.Output == "" {
					_, err := e.out.Writer.Write(data)
					return err
				}
				return e.writeForm(data, opts.Output)
			})
		},
	}
	export.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a protocol",
		Long: `Delete a protocol record. Its parameters, additive lines and lots stay
in the database as orphans (see "protocol orphans") unless --purge is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				id, err := parseID("protokołu", args[0])
				if err != nil {
					return err
				}
				if err := e.protocols.Delete(ctx, id, opts.Purge); err != nil {
					return err
				}
				return e.done(map[string]any{"id": id, "purge": opts.Purge}, "Usunięto protokół %d.", id)
			})
		},
	}
	del.Flags().BoolVar(&opts.Purge, "purge", false, "also delete the protocol's detail, additive and lot rows")

	next := &cobra.Command{
		Use:   "next-series",
		Short: "Print the next series number of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				today := e.now()
				month, year := int(today.Month()), today.Year()
				if opts.Month != 0 {
					month = opts.Month
				}
				if opts.Year != 0 {
					year = opts.Year
				}
				if month < 1 || month > 12 {
					return inputErrorf("Miesiąc musi być liczbą od 1 do 12.")
				}
				seq, err := e.store.NextSeriesNumber(ctx, month, year)
				if err != nil {
					return err
				}
				series := protocol.FormatSeries(seq, month, year)
				return e.done(map[string]any{"sequence": seq, "series": series}, "%s", series)
			})
		},
	}
	next.Flags().IntVar(&opts.Month, "month", 0, "month (default current)")
	next.Flags().IntVar(&opts.Year, "year", 0, "year (default current)")

	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "List rows left behind by deleted protocols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				items, err := e.store.ListOrphans(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(items))
				for _, o := range items {
					rows = append(rows, []string{o.Table, idString(o.ID), idString(o.ProductionRecordID)})
				}
				return e.table(items, []string{"TABELA", "ID", "PROTOKÓŁ"}, rows)
			})
		},
	}

	doses := &cobra.Command{
		Use:   "doses <product> <volume>",
		Short: "Compute additive doses for a raw material volume",
		Long: `Scale the product's recipe to a raw material volume without saving
anything.

Example:
  serownia protocol doses Gouda 250`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				product, err := e.productRef(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := e.protocols.New(ctx, product.ID)
				if err != nil {
					return err
				}
				if _, err := dosage.ParseVolume(args[1]); err != nil {
					return err
				}
				sc, _ := e.schemas.For(p.Kind)
				if err := applyFields(e, p, map[string]string{sc.VolumeField().Key: args[1]}); err != nil {
					return err
				}
				rows := make([][]string, 0, len(p.Additives))
				for _, a := range p.Additives {
					rows = append(rows, []string{a.Category, a.Name, a.Rate, a.Dose})
				}
				return e.table(p.Additives, []string{"KATEGORIA", "DODATEK", "DAWKA/100", "DAWKA"}, rows)
			})
		},
	}

	cmd.AddCommand(newCmd, show, list, save, export, del, next, orphans, doses)
	return cmd
}

// applyFields sets form fields and recomputes the doses.
func applyFields(e *env, p *protocol.Protocol, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	for k, v := range fields {
		p.Fields[k] = v
	}
	return e.protocols.Recalculate(p)
}

// emitProtocol writes p as YAML to path, or shows it on the output.
func (e *env) emitProtocol(p *protocol.Protocol, path string) error {
	if path != "" {
		data, err := protocol.MarshalYAML(p)
		if err != nil {
			return err
		}
		return e.writeForm(data, path)
	}
	sc, ok := e.schemas.For(p.Kind)
	if !ok {
		return fmt.Errorf("no schema for kind %s", p.Kind)
	}
	return e.out.Result(p, func(w io.Writer) error {
		return protocol.Render(w, p, sc)
	})
}

func (e *env) writeForm(data []byte, path string) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return e.out.report(ErrCodeIO, ExitCommandError, err)
	}
	return e.done(map[string]string{"path": path}, "Zapisano formularz do %s.", path)
}
