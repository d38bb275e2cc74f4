package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "shopfront",
	Short: "Shopfront is an online storefront service",
	Long: `An online storefront with encrypted customer data, an audit trail,
and TOTP two-factor authentication.
Complete documentation is available at https://github.com/mharding/shopfront`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
