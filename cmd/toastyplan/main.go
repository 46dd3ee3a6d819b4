// Command toastyplan compiles one of the package's worked scenarios into an
// Operation IR plan and prints it, without touching a live database.
// Grounded on cli/main.go's blank-import + Execute() + stderr error
// reporting shape; the db/migrate subcommand tree in cli/commands/*.go
// grounds explainCmd's flag layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Blank-imported so the three SQL dialects register their
	// database/sql drivers even though explain never opens a connection;
	// mirrors cli/main.go importing every adapter package for side effect.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "toastyplan",
	Short: "Compile and inspect toasty query/write plans",
	Long:  "toastyplan drives the planner package offline: it builds a fixture schema and statement, plans it, and prints the resulting Operation IR without opening a driver connection.",
}
