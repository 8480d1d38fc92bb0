package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var opts reconcileOptions

	cmd := &cobra.Command{
		Use:   "keywarden",
		Short: "Reconcile a signing key against the system trust store",
		Long: `keywarden brings the system trusted-key store to a declared desired
state: the key named by --id (or derived from the material at --url) ends up
present in or absent from the trust store, with the minimal mutation needed.

The result is reported as JSON on stdout: {"changed": true|false} on
success, {"msg": "...", "exception": "..."} on failure. The exit status
reflects the outcome.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "expected key identifier (hexadecimal)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "source URL for key material")
	cmd.Flags().StringVar(&opts.State, "state", "present", "desired state: present or absent")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "path to config file")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the keywarden version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keywarden %s\n", Version)
		},
	}
}
