// Package signer holds the gateway's single signing key for the process
// lifetime. The key never leaves this package: callers get the address and
// signed transaction bytes, nothing else.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromHex loads a raw secp256k1 private key, with or without 0x prefix.
func FromHex(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("signer: empty private key")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// the underlying message may quote key bytes
		return nil, errors.New("signer: invalid private key")
	}
	return New(key), nil
}

// FromEnv loads the key from the named environment variable.
func FromEnv(name string) (*Signer, error) {
	v := os.Getenv(name)
	if v == "" {
		return nil, fmt.Errorf("signer: environment variable %s is not set", name)
	}
	return FromHex(v)
}

// FromFile loads the key from a secret file.
func FromFile(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signer: read key file: %w", err)
	}
	return FromHex(string(data))
}

func New(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address is the account that pays for and originates every transaction.
func (s *Signer) Address() common.Address { return s.address }

// Sign signs tx for chainID with the latest EIP-155 compatible signer and
// returns the RLP-encoded result ready for eth_sendRawTransaction.
func (s *Signer) Sign(tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("signer: sign: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("signer: encode: %w", err)
	}
	return raw, nil
}

func (s *Signer) String() string { return "signer(" + s.address.Hex() + ")" }

// GoString keeps %#v from dumping the key.
func (s *Signer) GoString() string { return s.String() }
