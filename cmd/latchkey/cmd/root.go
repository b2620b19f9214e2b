package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "latchkey",
	Short: "Latchkey is a local authentication and secret-protection service",
	Long: `A single-user authentication layer that guards one encrypted secret behind a
passphrase, with lockout on repeated failures and optional biometric unlock.
Complete documentation is available at https://github.com/jmcleod/latchkey`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
