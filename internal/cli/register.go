package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/serownia/internal/report"
	"github.com/roach88/serownia/internal/store"
)

// RegisterOptions holds flags for the register commands.
type RegisterOptions struct {
	*RootOptions
	Date     string
	Quantity string
	Item     string
}

// NewRegisterCommand creates the register command group.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Record stock receipts",
		Long: `Record receipts of additives and packaging. <kind> is additives or
packaging; <item> is a catalog name or id.

Example:
  serownia register add additives "Sól" 25 --date 2024-07-01`,
	}

	withKind := func(arg string, fn func(kind store.RegisterKind) error) error {
		kind, err := store.ParseRegisterKind(arg)
		if err != nil {
			return asInput(err)
		}
		return fn(kind)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <kind>",
		Short: "List receipts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return withKind(args[0], func(kind store.RegisterKind) error {
					entries, err := e.store.ListRegister(ctx, kind)
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(entries))
					for _, r := range entries {
						rows = append(rows, []string{idString(r.ID), r.Date, r.Quantity, r.ItemName})
					}
					return e.table(entries, []string{"ID", "DATA", "ILOŚĆ", "POZYCJA"}, rows)
				})
			})
		},
	})

	add := &cobra.Command{
		Use:   "add <kind> <item> <quantity>",
		Short: "Record a receipt",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return withKind(args[0], func(kind store.RegisterKind) error {
					if err := checkQuantities(map[string]string{"Ilość": args[2]}); err != nil {
						return err
					}
					itemID, itemName, err := e.registerItem(ctx, kind, args[1])
					if err != nil {
						return err
					}
					date := opts.Date
					if date == "" {
						date = e.today()
					}
					id, err := e.store.AddRegisterEntry(ctx, kind, date, args[2], itemID)
					if err != nil {
						return err
					}
					entry := store.RegisterEntry{ID: id, Date: date, Quantity: args[2], ItemID: itemID, ItemName: itemName}
					return e.done(entry, "Przyjęto %s: %s (wpis %d).", itemName, args[2], id)
				})
			})
		},
	}
	add.Flags().StringVar(&opts.Date, "date", "", "receipt date (default today)")

	update := &cobra.Command{
		Use:   "update <kind> <id>",
		Short: "Change a receipt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return withKind(args[0], func(kind store.RegisterKind) error {
					id, err := parseID("wpisu", args[1])
					if err != nil {
						return err
					}
					entries, err := e.store.ListRegister(ctx, kind)
					if err != nil {
						return err
					}
					entry, err := pick("wpis", strconv.FormatInt(id, 10), entries,
						func(r store.RegisterEntry) int64 { return r.ID },
						func(r store.RegisterEntry) string { return "" })
					if err != nil {
						return err
					}
					flags := cmd.Flags()
					if flags.Changed("date") {
						entry.Date = opts.Date
					}
					if flags.Changed("quantity") {
						if err := checkQuantities(map[string]string{"Ilość": opts.Quantity}); err != nil {
							return err
						}
						entry.Quantity = opts.Quantity
					}
					if flags.Changed("item") {
						if entry.ItemID, entry.ItemName, err = e.registerItem(ctx, kind, opts.Item); err != nil {
							return err
						}
					}
					if err := e.store.UpdateRegisterEntry(ctx, kind, id, entry.Date, entry.Quantity, entry.ItemID); err != nil {
						return err
					}
					return e.done(entry, "Zapisano wpis %d.", id)
				})
			})
		},
	}
	update.Flags().StringVar(&opts.Date, "date", "", "receipt date")
	update.Flags().StringVar(&opts.Quantity, "quantity", "", "quantity")
	update.Flags().StringVar(&opts.Item, "item", "", "item name or id")

	cmd.AddCommand(add, update, &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a receipt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return withKind(args[0], func(kind store.RegisterKind) error {
					id, err := parseID("wpisu", args[1])
					if err != nil {
						return err
					}
					if err := e.store.DeleteRegisterEntry(ctx, kind, id); err != nil {
						return err
					}
					return e.done(map[string]int64{"id": id}, "Usunięto wpis %d.", id)
				})
			})
		},
	})
	return cmd
}

func (e *env) registerItem(ctx context.Context, kind store.RegisterKind, ref string) (int64, string, error) {
	if kind == store.RegisterPackaging {
		p, err := e.packagingRef(ctx, ref)
		return p.ID, p.Name, err
	}
	a, err := e.additiveRef(ctx, ref)
	return a.ID, a.Name, err
}

// NewStockCommand creates the stock command.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stock [additives|packaging]",
		Short: "Show received totals per item",
		Long: `Sum the register quantities per item. Entries whose quantity is not a
number are counted as skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				kinds := []store.RegisterKind{store.RegisterAdditives, store.RegisterPackaging}
				if len(args) == 1 {
					kind, err := store.ParseRegisterKind(args[0])
					if err != nil {
						return asInput(err)
					}
					kinds = []store.RegisterKind{kind}
				}
				totals := []report.Total{}
				for _, kind := range kinds {
					entries, err := e.store.ListRegister(ctx, kind)
					if err != nil {
						return err
					}
					totals = append(totals, report.Totals(kind, entries)...)
				}
				return e.out.Result(totals, func(w io.Writer) error {
					if len(totals) == 0 {
						fmt.Fprintln(w, "(brak)")
						return nil
					}
					rows := make([][]string, 0, len(totals))
					for _, t := range totals {
						rows = append(rows, []string{
							t.Register, t.ItemName, t.Quantity.String(),
							strconv.Itoa(t.Entries), strconv.Itoa(t.Skipped),
						})
					}
					return writeTable(w, []string{"REJESTR", "POZYCJA", "PRZYJĘTO", "WPISY", "POMINIĘTE"}, rows)
				})
			})
		},
	}
}
