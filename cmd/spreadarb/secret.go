package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
)

func encryptSecretCmd() *cobra.Command {
	var (
		out      string
		password string
	)
	cmd := &cobra.Command{
		Use:   "encrypt-secret",
		Short: "Encrypt a venue API secret read from stdin",
		Long: `Reads one line (the API secret) from stdin and writes an encrypted JSON
file for use as a venue's encrypted_secret_path. The password comes from
--password or SPREADARB_SECRET_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("SPREADARB_SECRET_PASSWORD")
			}
			if password == "" {
				return errors.New("a password is required (--password or SPREADARB_SECRET_PASSWORD)")
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read secret: %w", err)
			}

			blob, err := crypto.EncryptSecret(strings.TrimSpace(line), password)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, blob, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "encrypted secret written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "secret.enc.json", "output file")
	cmd.Flags().StringVar(&password, "password", "", "encryption password")
	return cmd
}
