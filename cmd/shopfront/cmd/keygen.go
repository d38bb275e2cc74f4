package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mharding/shopfront/crypto"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new encryption key",
	Long: `Generates a random 256-bit key, base64 encoded, suitable for
SHOPFRONT_ENCRYPTION_KEY or SHOPFRONT_SESSION_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.NewEncodedKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
