package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/serownia/internal/protocol"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Database   string // overrides database.path from the config

	// Test hooks. Zero values select the production behavior.
	Clock      func() time.Time
	IDs        protocol.IDGenerator
	Logger     *zap.Logger
	BcryptCost int
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the serownia CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serownia",
		Short: "serownia - production records for a small dairy",
		Long: `Keeps the records of a small dairy in one SQLite file: catalogs of
additives, products and packaging, product recipes, stock receipt registers,
and production protocols for cheese, fermented drinks and curd cheese.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (TOML or YAML)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewCategoryCommand(opts))
	cmd.AddCommand(NewAdditiveCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewRecipeCommand(opts))
	cmd.AddCommand(NewPackagingCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewStockCommand(opts))
	cmd.AddCommand(NewProtocolCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
