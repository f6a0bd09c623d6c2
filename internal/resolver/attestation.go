package resolver

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Attestation is the registry's record as presented to a resolver. Resolvers
// never modify it.
type Attestation struct {
	UID            common.Hash    `json:"uid"`
	SchemaUID      common.Hash    `json:"schema_uid"`
	Recipient      common.Address `json:"recipient"`
	Attester       common.Address `json:"attester"`
	Time           uint64         `json:"time"`
	ExpirationTime uint64         `json:"expiration_time"`
	RevocationTime uint64         `json:"revocation_time"`
	Revocable      bool           `json:"revocable"`
	RefUID         common.Hash    `json:"ref_uid"`
	Data           hexutil.Bytes  `json:"data"`
	Value          *big.Int       `json:"value,omitempty"`
}
