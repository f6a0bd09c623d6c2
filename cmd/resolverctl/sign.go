package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"Attest-Resolver/internal/auth"
)

// EnvSigningKey 在未传 --key 时提供私钥。
const EnvSigningKey = "RESOLVER_SIGNING_KEY"

func newDigestCmd() *cobra.Command {
	var f invocationFlags
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the digest a signer must sign for an invocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, err := f.build()
			if err != nil {
				return err
			}
			digest, err := inv.Digest(f.nonce)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest.Hex())
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func newSignCmd() *cobra.Command {
	var (
		f   invocationFlags
		key string
	)
	cmd := &cobra.Command{
		Use:   "sign-proof",
		Short: "Sign an invocation and print the proof as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				key = os.Getenv(EnvSigningKey)
			}
			if key == "" {
				return fmt.Errorf("需要 --key 或环境变量 %s", EnvSigningKey)
			}
			priv, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
			if err != nil {
				return fmt.Errorf("解析私钥失败: %w", err)
			}
			inv, err := f.build()
			if err != nil {
				return err
			}
			proof, err := auth.Sign(priv, inv, f.nonce)
			if err != nil {
				return err
			}
			return printJSON(cmd, proof)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&key, "key", "", "hex encoded secp256k1 private key")
	return cmd
}
