package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd 构造 resolverctl 根命令。
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "resolverctl",
		Short: "Sign and inspect resolver invocation proofs",
		Long: `resolverctl helps operators and attesters talk to resolverd:

	1. keygen creates a secp256k1 key and prints its address.
	2. digest prints the digest a signer must sign for an invocation.
	3. sign-proof signs that digest and prints a proof ready to be sent
	in a request body or in the X-Resolver-Proofs header.`,
		SilenceUsage: true,
	}
	root.AddCommand(newKeygenCmd(), newDigestCmd(), newSignCmd())
	return root
}
