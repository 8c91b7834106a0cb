package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/external"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// userRejectedCode is the EIP-1193 "User Rejected Request" error code.
const userRejectedCode = 4001

// Signer produces signed transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error)
}

// KeySigner signs with an in-process private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a hex private key, with or without 0x prefix.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrKeyNotFound
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Join(ErrSignerInit, fmt.Errorf("invalid private key: %w", err))
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *KeySigner) Address() common.Address { return s.address }

func (s *KeySigner) SignTx(_ context.Context, tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error) {
	return gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chainID), s.key)
}

// ExternalSigner delegates signing to an external signer (clef), where the account holder
// approves or rejects each request.
type ExternalSigner struct {
	backend *external.ExternalSigner
	account accounts.Account
}

// NewExternalSigner connects to endpoint and selects account, or the first account the signer
// exposes when account is the zero address.
func NewExternalSigner(endpoint string, account common.Address) (*ExternalSigner, error) {
	if endpoint == "" {
		return nil, errors.Join(ErrSignerInit, errors.New("external signer endpoint is empty"))
	}
	backend, err := external.NewExternalSigner(endpoint)
	if err != nil {
		return nil, errors.Join(ErrSignerInit, err)
	}

	available := backend.Accounts()
	if len(available) == 0 {
		return nil, errors.Join(ErrKeyNotFound, errors.New("external signer exposes no accounts"))
	}
	selected := available[0]
	if account != (common.Address{}) {
		found := false
		for _, a := range available {
			if a.Address == account {
				selected, found = a, true
				break
			}
		}
		if !found {
			return nil, errors.Join(ErrKeyNotFound, fmt.Errorf("account %s not managed by external signer", account.Hex()))
		}
	}

	walletLogger.Info().Str("endpoint", endpoint).Str("address", selected.Address.Hex()).Msg("Connected to external signer")
	return &ExternalSigner{backend: backend, account: selected}, nil
}

func (s *ExternalSigner) Address() common.Address { return s.account.Address }

func (s *ExternalSigner) SignTx(_ context.Context, tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error) {
	return s.backend.SignTx(s.account, tx, chainID)
}

// IsRejection reports whether err means the account holder declined to sign.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWalletRejected) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"request denied", "user rejected", "user denied", "rejected by user", "declined"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isRevertMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}
