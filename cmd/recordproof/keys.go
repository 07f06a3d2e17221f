package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newKeysCmd(opts *globalOptions) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the RSA-2048 signing key pair",
	}
	keysCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Load the key pair, generating it on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := opts.keyManager(true)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "private key: %s\npublic key:  %s\n", manager.PrivateKeyPath(), manager.PublicKeyPath())
			return nil
		},
	})
	keysCmd.AddCommand(&cobra.Command{
		Use:   "public",
		Short: "Print the public key in PEM form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := opts.keyManager(false)
			if err != nil {
				return err
			}
			pemBytes, err := manager.PublicKeyPEM()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(pemBytes)
			return err
		},
	})
	return keysCmd
}
