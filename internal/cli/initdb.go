package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stravasync/stravasync/internal/store"
)

// initDBCmd represents the init-db command
var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or reset the local database",
	Long: `Create the SQLite database and run migrations.

With --reset, all synced data is dropped and the schema is recreated.
With --verify, the schema is checked and row counts are printed.

Example:
  stravasync init-db
  stravasync init-db --reset
  stravasync init-db --verify`,
	RunE: runInitDB,
}

var initDBFlags struct {
	Reset  bool
	Verify bool
}

func init() {
	initDBCmd.Flags().BoolVar(&initDBFlags.Reset, "reset", false, "Drop all tables and recreate the schema")
	initDBCmd.Flags().BoolVar(&initDBFlags.Verify, "verify", false, "Check the schema and print row counts")

	RootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if initDBFlags.Reset {
		if err := st.Reset(); err != nil {
			return err
		}
		fmt.Println("Database reset")
	}

	if initDBFlags.Verify {
		ctx := context.Background()
		activities, err := st.CountActivities(ctx)
		if err != nil {
			return err
		}
		kudos, err := st.CountKudos(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Database OK: %d activities, %d kudos\n", activities, kudos)
		return nil
	}

	fmt.Printf("Database ready at %s\n", cfg.Storage.DatabasePath)
	return nil
}
