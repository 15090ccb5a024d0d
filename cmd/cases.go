package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/config"
	"github.com/abhisek/dentai/internal/scenario"
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Inspect the case catalog",
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cases in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		if catalog.Len() == 0 {
			fmt.Println("No cases loaded.")
			return nil
		}

		fmt.Printf("%-16s  %-14s  %s\n", "ID", "Category", "Name")
		fmt.Println(strings.Repeat("─", 60))
		for _, c := range catalog.Cases() {
			fmt.Printf("%-16s  %-14s  %s\n", c.ID(), c.Category(), c.Name())
		}
		return nil
	},
}

var casesPersonaCmd = &cobra.Command{
	Use:   "persona <id>",
	Short: "Print the patient persona built for a case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		c, ok := catalog.Lookup(args[0])
		if !ok {
			return fmt.Errorf("case %q not found", args[0])
		}
		fmt.Println(scenario.Persona(c))
		return nil
	},
}

// loadCatalog reads the catalog without wiring the rest of the pipeline.
func loadCatalog(cmd *cobra.Command) (*scenario.Catalog, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()
	return scenario.LoadCatalog(cfg.CasesPath, logger.With(zap.String("cmd", "cases"))), nil
}

func init() {
	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesPersonaCmd)
}
