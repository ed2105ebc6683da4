package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/ansel1/merry"
	"github.com/spf13/cobra"

	"github.com/roach88/serownia/internal/dosage"
	"github.com/roach88/serownia/internal/store"
)

func idString(id int64) string { return strconv.FormatInt(id, 10) }

// table outputs data as JSON, or as an aligned table in text mode.
func (e *env) table(data any, headers []string, rows [][]string) error {
	return e.out.Result(data, func(w io.Writer) error {
		if len(rows) == 0 {
			fmt.Fprintln(w, "(brak)")
			return nil
		}
		return writeTable(w, headers, rows)
	})
}

func (e *env) done(data any, format string, args ...any) error {
	return e.out.Result(data, func(w io.Writer) error {
		fmt.Fprintf(w, format+"\n", args...)
		return nil
	})
}

// checkQuantities validates numeric text fields without changing how they
// are stored.
func checkQuantities(fields map[string]string) error {
	for name, v := range fields {
		if _, _, err := dosage.ParseQuantity(name, v); err != nil {
			return err
		}
	}
	return nil
}

// NewCategoryCommand creates the category command group.
func NewCategoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage additive, product and packaging categories",
		Long: `Manage the three category lists. <kind> is additive, product or packaging.

The category of a product selects its production protocol: "Ser",
"Napoje fermentowane" and "Ser twarogowy" have one.`,
	}

	withKind := func(args []string, fn func(kind store.CategoryKind) error) error {
		kind, err := store.ParseCategoryKind(args[0])
		if err != nil {
			return asInput(err)
		}
		return fn(kind)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <kind>",
		Short: "List categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return withKind(args, func(kind store.CategoryKind) error {
					cats, err := e.store.ListCategories(ctx, kind)
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(cats))
					for _, c := range cats {
						row := []string{idString(c.ID), c.Name}
						if kind == store.CategoryProduct {
							row = append(row, e.kindOf(c.Name))
						}
						rows = append(rows, row)
					}
					headers := []string{"ID", "NAZWA"}
					if kind == store.CategoryProduct {
						headers = append(headers, "PROTOKÓŁ")
					}
					return e.table(cats, headers, rows)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <kind> <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return withKind(args, func(kind store.CategoryKind) error {
					id, err := e.store.AddCategory(ctx, kind, args[1])
					if err != nil {
						// Only product categories get the dedicated duplicate
						// warning; the other lists report the raw database error.
						if kind == store.CategoryProduct && store.IsDuplicate(err) {
							return e.out.report(ErrCodeDuplicate, ExitFailure, merry.WithUserMessage(err, "category already exists"))
						}
						return e.out.report(ErrCodeDB, ExitCommandError, merry.WithUserMessage(err, err.Error()))
					}
					return e.done(store.Category{ID: id, Name: args[1]}, "Dodano kategorię %q (id %d).", args[1], id)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <kind> <id> <name>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return withKind(args, func(kind store.CategoryKind) error {
					id, err := parseID("kategorii", args[1])
					if err != nil {
						return err
					}
					if err := e.store.RenameCategory(ctx, kind, id, args[2]); err != nil {
						return err
					}
					return e.done(store.Category{ID: id, Name: args[2]}, "Zmieniono nazwę kategorii %d na %q.", id, args[2])
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				return withKind(args, func(kind store.CategoryKind) error {
					id, err := parseID("kategorii", args[1])
					if err != nil {
						return err
					}
					if err := e.store.DeleteCategory(ctx, kind, id); err != nil {
						return err
					}
					return e.done(map[string]int64{"id": id}, "Usunięto kategorię %d.", id)
				})
			})
		},
	})

	return cmd
}

// AdditiveOptions holds flags for the additive commands.
type AdditiveOptions struct {
	*RootOptions
	Name     string
	Category string
}

// NewAdditiveCommand creates the additive command group.
func NewAdditiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdditiveOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "additive",
		Short: "Manage the additive catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List additives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				items, err := e.store.ListAdditives(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(items))
				for _, a := range items {
					rows = append(rows, []string{idString(a.ID), a.Name, a.CategoryName})
				}
				return e.table(items, []string{"ID", "NAZWA", "KATEGORIA"}, rows)
			})
		},
	})

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an additive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				catID, err := e.categoryRef(ctx, store.CategoryAdditive, opts.Category)
				if err != nil {
					return err
				}
				id, err := e.store.AddAdditive(ctx, args[0], catID)
				if err != nil {
					return err
				}
				a, err := e.store.GetAdditive(ctx, id)
				if err != nil {
					return err
				}
				return e.done(a, "Dodano dodatek %q (id %d).", a.Name, id)
			})
		},
	}
	add.Flags().StringVar(&opts.Category, "category", "", "category name or id")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an additive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				id, err := parseID("dodatku", args[0])
				if err != nil {
					return err
				}
				a, err := e.store.GetAdditive(ctx, id)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("name") {
					a.Name = opts.Name
				}
				if cmd.Flags().Changed("category") {
					if a.CategoryID, err = e.categoryRef(ctx, store.CategoryAdditive, opts.Category); err != nil {
						return err
					}
				}
				if err := e.store.UpdateAdditive(ctx, id, a.Name, a.CategoryID); err != nil {
					return err
				}
				return e.done(a, "Zapisano dodatek %d.", id)
			})
		},
	}
	update.Flags().StringVar(&opts.Name, "name", "", "new name")
	update.Flags().StringVar(&opts.Category, "category", "", "category name or id; empty clears it")

	cmd.AddCommand(add, update, deleteCommand(rootOpts, "additive", "dodatku", func(ctx context.Context, e *env, id int64) error {
		return e.store.DeleteAdditive(ctx, id)
	}))
	return cmd
}

// ProductOptions holds flags for the product commands.
type ProductOptions struct {
	*RootOptions
	Name     string
	Category string
	Price    string
	Stock    string
}

// NewProductCommand creates the product command group.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the product catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				items, err := e.store.ListProducts(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(items))
				for _, p := range items {
					rows = append(rows, []string{idString(p.ID), p.Name, p.CategoryName, e.kindOf(p.CategoryName), p.Price, p.Stock})
				}
				return e.table(items, []string{"ID", "NAZWA", "KATEGORIA", "PROTOKÓŁ", "CENA", "STAN"}, rows)
			})
		},
	})

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				if err := checkQuantities(map[string]string{"Cena": opts.Price, "Stan": opts.Stock}); err != nil {
					return err
				}
				catID, err := e.categoryRef(ctx, store.CategoryProduct, opts.Category)
				if err != nil {
					return err
				}
				id, err := e.store.AddProduct(ctx, args[0], catID, opts.Price, opts.Stock)
				if err != nil {
					return err
				}
				p, err := e.store.GetProduct(ctx, id)
				if err != nil {
					return err
				}
				return e.done(p, "Dodano produkt %q (id %d, protokół: %s).", p.Name, id, e.kindOf(p.CategoryName))
			})
		},
	}
	add.Flags().StringVar(&opts.Category, "category", "", "category name or id")
	add.Flags().StringVar(&opts.Price, "price", "", "price")
	add.Flags().StringVar(&opts.Stock, "stock", "", "stock")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				id, err := parseID("produktu", args[0])
				if err != nil {
					return err
				}
				p, err := e.store.GetProduct(ctx, id)
				if err != nil {
					return err
				}
				flags := cmd.Flags()
				if flags.Changed("name") {
					p.Name = opts.Name
				}
				if flags.Changed("price") {
					p.Price = opts.Price
				}
				if flags.Changed("stock") {
					p.Stock = opts.Stock
				}
				if err := checkQuantities(map[string]string{"Cena": p.Price, "Stan": p.Stock}); err != nil {
					return err
				}
				if flags.Changed("category") {
					if p.CategoryID, err = e.categoryRef(ctx, store.CategoryProduct, opts.Category); err != nil {
						return err
					}
				}
				if err := e.store.UpdateProduct(ctx, p); err != nil {
					return err
				}
				return e.done(p, "Zapisano produkt %d.", id)
			})
		},
	}
	update.Flags().StringVar(&opts.Name, "name", "", "new name")
	update.Flags().StringVar(&opts.Category, "category", "", "category name or id; empty clears it")
	update.Flags().StringVar(&opts.Price, "price", "", "price")
	update.Flags().StringVar(&opts.Stock, "stock", "", "stock")

	cmd.AddCommand(add, update, deleteCommand(rootOpts, "product", "produktu", func(ctx context.Context, e *env, id int64) error {
		return e.store.DeleteProduct(ctx, id)
	}))
	return cmd
}

// RecipeOptions holds flags for the recipe commands.
type RecipeOptions struct {
	*RootOptions
	Additive string
}

// NewRecipeCommand creates the recipe command group.
func NewRecipeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecipeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage product recipes",
		Long: `A recipe line is the dosage of one additive per 100 units of raw
material, written as "<number> <unit>", e.g. "2,5 ml".`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <product>",
		Short: "List the recipe of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				p, err := e.productRef(ctx, args[0])
				if err != nil {
					return err
				}
				lines, err := e.store.ListProductAdditives(ctx, p.ID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(lines))
				for _, l := range lines {
					rows = append(rows, []string{idString(l.ID), l.CategoryName, l.AdditiveName, l.DosagePer100})
				}
				return e.table(lines, []string{"ID", "KATEGORIA", "DODATEK", "DAWKA/100"}, rows)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <product> <additive> <dosage>",
		Short: "Add a recipe line",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				if err := checkRate(args[2]); err != nil {
					return err
				}
				p, err := e.productRef(ctx, args[0])
				if err != nil {
					return err
				}
				a, err := e.additiveRef(ctx, args[1])
				if err != nil {
					return err
				}
				id, err := e.store.AddProductAdditive(ctx, p.ID, a.ID, args[2])
				if err != nil {
					return err
				}
				line := store.ProductAdditive{ID: id, ProductID: p.ID, AdditiveID: a.ID, AdditiveName: a.Name, DosagePer100: args[2]}
				return e.done(line, "Dodano %s %s do receptury %q.", a.Name, args[2], p.Name)
			})
		},
	})

	update := &cobra.Command{
		Use:   "update <line-id> <dosage>",
		Short: "Change a recipe line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				id, err := parseID("pozycji receptury", args[0])
				if err != nil {
					return err
				}
				if err := checkRate(args[1]); err != nil {
					return err
				}
				if opts.Additive == "" {
					err = e.store.UpdateProductAdditive(ctx, id, args[1])
				} else {
					var a store.Additive
					if a, err = e.additiveRef(ctx, opts.Additive); err != nil {
						return err
					}
					err = e.store.UpdateProductAdditiveFull(ctx, id, a.ID, args[1])
				}
				if err != nil {
					return err
				}
				return e.done(map[string]any{"id": id, "dosage_per_100": args[1]}, "Zapisano pozycję receptury %d.", id)
			})
		},
	}
	update.Flags().StringVar(&opts.Additive, "additive", "", "replace the additive (name or id)")

	cmd.AddCommand(update, deleteCommand(rootOpts, "recipe line", "pozycji receptury", func(ctx context.Context, e *env, id int64) error {
		return e.store.DeleteProductAdditive(ctx, id)
	}))
	return cmd
}

func checkRate(s string) error {
	if dosage.Parse(s).IsZero() {
		return inputErrorf("Dawka %q musi być dodatnią liczbą z jednostką, np. \"2,5 ml\".", s)
	}
	return nil
}

// PackagingOptions holds flags for the packaging commands.
type PackagingOptions struct {
	*RootOptions
	Name     string
	Quantity string
	Date     string
	Category string
}

// NewPackagingCommand creates the packaging command group.
func NewPackagingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PackagingOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "packaging",
		Short: "Manage the packaging catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List packaging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				items, err := e.store.ListPackaging(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(items))
				for _, p := range items {
					rows = append(rows, []string{idString(p.ID), p.Name, p.Quantity, p.Date, p.CategoryName})
				}
				return e.table(items, []string{"ID", "NAZWA", "ILOŚĆ", "DATA", "KATEGORIA"}, rows)
			})
		},
	})

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add packaging",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				if err := checkQuantities(map[string]string{"Ilość": opts.Quantity}); err != nil {
					return err
				}
				catID, err := e.categoryRef(ctx, store.CategoryPackaging, opts.Category)
				if err != nil {
					return err
				}
				id, err := e.store.AddPackaging(ctx, args[0], opts.Quantity, opts.Date, catID)
				if err != nil {
					return err
				}
				p := store.Packaging{ID: id, Name: args[0], Quantity: opts.Quantity, Date: opts.Date, CategoryID: catID}
				return e.done(p, "Dodano opakowanie %q (id %d).", args[0], id)
			})
		},
	}
	add.Flags().StringVar(&opts.Quantity, "quantity", "", "quantity")
	add.Flags().StringVar(&opts.Date, "date", "", "date")
	add.Flags().StringVar(&opts.Category, "category", "", "category name or id")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change packaging",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				id, err := parseID("opakowania", args[0])
				if err != nil {
					return err
				}
				p, err := e.packagingRef(ctx, args[0])
				if err != nil {
					return err
				}
				flags := cmd.Flags()
				if flags.Changed("name") {
					p.Name = opts.Name
				}
				if flags.Changed("quantity") {
					p.Quantity = opts.Quantity
				}
				if flags.Changed("date") {
					p.Date = opts.Date
				}
				if err := checkQuantities(map[string]string{"Ilość": p.Quantity}); err != nil {
					return err
				}
				if flags.Changed("category") {
					if p.CategoryID, err = e.categoryRef(ctx, store.CategoryPackaging, opts.Category); err != nil {
						return err
					}
				}
				if err := e.store.UpdatePackaging(ctx, p); err != nil {
					return err
				}
				return e.done(p, "Zapisano opakowanie %d.", id)
			})
		},
	}
	update.Flags().StringVar(&opts.Name, "name", "", "new name")
	update.Flags().StringVar(&opts.Quantity, "quantity", "", "quantity")
	update.Flags().StringVar(&opts.Date, "date", "", "date")
	update.Flags().StringVar(&opts.Category, "category", "", "category name or id; empty clears it")

	cmd.AddCommand(add, update, deleteCommand(rootOpts, "packaging", "opakowania", func(ctx context.Context, e *env, id int64) error {
		return e.store.DeletePackaging(ctx, id)
	}))
	return cmd
}

// deleteCommand builds the "delete <id>" subcommand shared by the catalogs.
func deleteCommand(rootOpts *RootOptions, noun, genitive string, del func(ctx context.Context, e *env, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				id, err := parseID(genitive, args[0])
				if err != nil {
					return err
				}
				if err := del(ctx, e, id); err != nil {
					return err
				}
				return e.done(map[string]int64{"id": id}, "Usunięto %d.", id)
			})
		},
	}
}
