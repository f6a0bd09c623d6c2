package main

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

type keyOutput struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			return printJSON(cmd, keyOutput{
				Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
				PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
			})
		},
	}
}
