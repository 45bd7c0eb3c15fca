/*
condoctl - command line access to the reconciliation engine

USAGE:
  condoctl [-f dataset.json | -db condo.db] <command> [flags]

COMMANDS:
  audit    data integrity findings (exit status 1 when errors are found)
  debt     debt summary of a unit, a creditor, or the whole building
  fees     itemized monthly charge of a unit
  status   month-by-month reconciliation of a unit
  report   annual building report
  import   load a JSON dataset into the database

DATA SOURCE:
  -f reads a JSON dataset (same format as POST /api/import) and never writes.
  Otherwise the SQLite database at -db (DB_PATH) is opened.
*/
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/warp/condo-ledger/config"
)

var (
	cfg = config.Load()

	datasetFile = flag.String("f", "", "JSON dataset file (overrides -db)")
	dbPath      = flag.String("db", cfg.DBPath, "SQLite database path")
	currency    = flag.String("currency", "EUR", "ISO 4217 currency used to print amounts")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&auditCmd{}, "checks")
	commander.Register(&debtCmd{}, "debt")
	commander.Register(&feesCmd{}, "debt")
	commander.Register(&statusCmd{}, "debt")
	commander.Register(&reportCmd{}, "debt")
	commander.Register(&importCmd{}, "data")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
