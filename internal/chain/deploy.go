package chain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ErrEmptyBytecode is returned when an artifact carries no deployable code.
var ErrEmptyBytecode = errors.New("artifact has no bytecode")

// Artifact is a compiled contract as written by Hardhat.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// LoadArtifact reads a compiled contract artifact from path.
func LoadArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	if len(common.FromHex(artifact.Bytecode)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBytecode, path)
	}
	if _, err := artifact.ParsedABI(); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// ParsedABI decodes the artifact's ABI.
func (a *Artifact) ParsedABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse artifact ABI: %w", err)
	}
	return parsed, nil
}

// DeployBackend is everything needed to send a deployment and wait for it.
type DeployBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Deploy sends the artifact's creation transaction signed with key and waits until
// the contract code is on chain.
func Deploy(ctx context.Context, backend DeployBackend, key *ecdsa.PrivateKey, artifact *Artifact) (common.Address, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return common.Address{}, err
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read chain id: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	_, tx, _, err := bind.DeployContract(auth, parsed, common.FromHex(artifact.Bytecode), backend)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to send deployment: %w", err)
	}

	address, err := bind.WaitDeployed(ctx, backend, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to confirm deployment %s: %w", tx.Hash().Hex(), err)
	}
	return address, nil
}
