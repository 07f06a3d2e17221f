package main

import (
	"errors"
	"fmt"
	"os"

	"recordproof/internal/domain"
	"recordproof/internal/infra/crypto"
	"recordproof/internal/usecase"

	"github.com/spf13/cobra"
)

var errSignatureInvalid = errors.New("signature invalid")

type signOutput struct {
	Email     string `json:"email"`
	EmailHash string `json:"emailHash"`
	Signature string `json:"signature"`
}

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <email>",
		Short: "Print the SHA-384 digest of a normalized email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := crypto.HashEmail(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest.Hex())
			return nil
		},
	}
}

func newSignCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <email>",
		Short: "Hash and sign an email with the local private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := opts.keyManager(true)
			if err != nil {
				return err
			}
			auth := usecase.NewAuthenticity(crypto.HashEmail, crypto.NewSigner(manager))
			digest, sig, err := auth.Process(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), signOutput{
				Email:     domain.NormalizeEmail(args[0]),
				EmailHash: digest.Hex(),
				Signature: sig.Hex(),
			})
		},
	}
}

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	var (
		email      string
		signature  string
		pubkeyPath string
	)
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a hex signature against an email",
		Long: "Check a hex signature against an email. With --pubkey only the given\n" +
			"PEM public key is read; otherwise the local key pair is used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			digest, err := crypto.HashEmail(email)
			if err != nil {
				return err
			}
			sig, err := domain.ParseSignatureHex(signature)
			if err != nil {
				return fmt.Errorf("%w: %v", errSignatureInvalid, err)
			}

			var valid bool
			if pubkeyPath != "" {
				pemBytes, err := os.ReadFile(pubkeyPath)
				if err != nil {
					return fmt.Errorf("read %s: %w", pubkeyPath, err)
				}
				valid = crypto.VerifyPEM(digest, sig, pemBytes)
			} else {
				manager, err := opts.keyManager(false)
				if err != nil {
					return err
				}
				valid = crypto.NewSigner(manager).Verify(digest, sig)
			}
			if !valid {
				return errSignatureInvalid
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&email, "email", "", "email the signature was issued for")
	verifyCmd.Flags().StringVar(&signature, "signature", "", "lowercase hex signature")
	verifyCmd.Flags().StringVar(&pubkeyPath, "pubkey", "", "PEM public key file")
	_ = verifyCmd.MarkFlagRequired("email")
	_ = verifyCmd.MarkFlagRequired("signature")
	return verifyCmd
}
