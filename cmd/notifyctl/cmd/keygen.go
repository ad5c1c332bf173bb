package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyq/internal/security"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an API key and the hash for the server config",
	Long: `Generate a random API key.

Put the hash in the server's api_key_hash setting and hand the key to
clients. The key itself is never stored.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		key, hash, err := security.GenerateKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}

		switch {
		case IsJSONOutput():
			return printJSON(map[string]string{"apiKey": key, "apiKeyHash": hash})
		case IsQuiet():
			fmt.Println(key)
			fmt.Println(hash)
		default:
			fmt.Print(renderResult("keygen", "Store the hash on the server, keep the key secret.", nil,
				field{"API Key", key},
				field{"Hash", hash},
			))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
