package main

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/opir"
	"github.com/satishbabariya/toasty-go/internal/planner"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

func init() {
	initExplainFlags()
	rootCmd.AddCommand(explainCmd)
}

var explainCmd = &cobra.Command{
	Use:   "explain [scenario]",
	Short: "Plan one of the S1-S6 worked scenarios and print its Operation IR",
	Long: "explain builds the fixture schema and statement for the named scenario " +
		"(s1 through s6, matching spec.md's worked examples), compiles it through " +
		"internal/planner, and pretty-prints the resulting plan. S1 has no plan " +
		"-- it exercises the filter simplifier directly -- so its output is the " +
		"simplified expression instead.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dialect, _ := cmd.Flags().GetString("dialect")
		cap, err := dialectCapability(dialect)
		if err != nil {
			return err
		}
		result, err := runScenario(strings.ToLower(args[0]), cap)
		if err != nil {
			return err
		}
		printer := pp.New()
		printer.SetColoringEnabled(false)
		printer.Fprintln(cmd.OutOrStdout(), result)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available scenario names",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range scenarioNames() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, scenarios[name].description)
		}
		return nil
	},
}

func initExplainFlags() {
	explainCmd.Flags().StringP("dialect", "d", "sqlite", "target backend capability: sqlite, postgres, mysql or kv")
	rootCmd.AddCommand(listCmd)
}

func dialectCapability(name string) (capability.Capability, error) {
	switch strings.ToLower(name) {
	case "sqlite":
		return capability.SQLite, nil
	case "postgres", "postgresql":
		return capability.PostgreSQL, nil
	case "mysql":
		return capability.MySQL, nil
	case "kv", "bolt", "dynamo":
		return capability.DynamoStyleKV, nil
	default:
		return capability.Capability{}, fmt.Errorf("unknown dialect %q (want sqlite, postgres, mysql or kv)", name)
	}
}

// plan runs a single statement through the top-level planner dispatch,
// used by runScenario for every scenario except S1.
func plan(s schema.Schema, cap capability.Capability, st stmt.Statement) (opir.Plan, error) {
	return planner.Plan(s, cap, st)
}
