package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"recordproof/internal/infra/keys/pemfile"
	"recordproof/internal/logging"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	keyRoot  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "recordproof",
		Short:         "Issue, verify and inspect signed user records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.keyRoot, "key-root", envOr("KEY_ROOT", "."), "directory holding keys/private.pem and keys/public.pem")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	rootCmd.AddCommand(
		newKeysCmd(opts),
		newDigestCmd(),
		newSignCmd(opts),
		newVerifyCmd(opts),
		newDecodeCmd(),
	)
	return rootCmd
}

// keyManager opens the key pair under the configured root. Only commands
// that issue signatures pass generate; the others fail on an empty root.
func (o *globalOptions) keyManager(generate bool) (*pemfile.Manager, error) {
	logger, err := logging.New(logging.Options{Level: o.logLevel, Console: true})
	if err != nil {
		return nil, err
	}
	manager := pemfile.NewManager(o.keyRoot, logger)
	if generate {
		err = manager.Initialize()
	} else {
		err = manager.Load()
	}
	if err != nil {
		return nil, err
	}
	return manager, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
