package cmd

import (
	"fmt"
	"log"

	"vasilala/config"
	"vasilala/core/auth"
	"vasilala/db"
	"vasilala/repository"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrateModels(&repository.DocumentRow{}, &auth.Credential{}); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		fmt.Println("schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
