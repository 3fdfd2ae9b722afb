package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Write a new P-256 signing key in PEM form",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		der, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			return fmt.Errorf("failed to encode key: %w", err)
		}
		block := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

		if keygenOut == "" || keygenOut == "-" {
			_, err = cmd.OutOrStdout().Write(block)
			return err
		}
		if err := os.WriteFile(keygenOut, block, 0o600); err != nil {
			return fmt.Errorf("failed to write key: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", keygenOut)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "output file (default stdout)")
}
