package main

import (
	"fmt"
	"log"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	configPath string
)

func main() {
	c := &cobra.Command{
		Use:           "padbank",
		Short:         "Portable audio pad banks: import, export and storage",
		Version:       fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:          cobra.ExactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default ./padbank.toml)")

	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for padbank",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(serverCmd())
	c.AddCommand(gcCmd)

	c.AddCommand(banksCmd)
	c.AddCommand(bankCmd())
	c.AddCommand(quotaCmd)
	c.AddCommand(importCmd())
	c.AddCommand(exportCmd())
	c.AddCommand(adminExportCmd())
	c.AddCommand(grantCmd())

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}
