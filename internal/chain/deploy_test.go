package chain

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stopContractBytecode deploys a contract whose runtime code is a single STOP.
const stopContractBytecode = "0x6001600c60003960016000f300"

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ProductManager.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadArtifact(t *testing.T) {
	t.Run("hardhat artifact", func(t *testing.T) {
		path := writeArtifact(t, `{"contractName":"ProductManager","abi":`+ProductManagerABI+`,"bytecode":"`+stopContractBytecode+`"}`)

		artifact, err := LoadArtifact(path)

		require.NoError(t, err)
		assert.Equal(t, "ProductManager", artifact.ContractName)
		parsed, err := artifact.ParsedABI()
		require.NoError(t, err)
		assert.Contains(t, parsed.Methods, "getAllProducts")
		assert.Contains(t, parsed.Methods, "createProduct")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadArtifact(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})

	t.Run("no bytecode", func(t *testing.T) {
		path := writeArtifact(t, `{"contractName":"ProductManager","abi":[],"bytecode":"0x"}`)

		_, err := LoadArtifact(path)

		assert.ErrorIs(t, err, ErrEmptyBytecode)
	})
}

func TestDeploy(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	deployer := crypto.PubkeyToAddress(key.PublicKey)

	sim := simulated.NewBackend(types.GenesisAlloc{
		deployer: {Balance: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))},
	})
	defer sim.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// mine blocks until the deployment is confirmed
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sim.Commit()
			}
		}
	}()

	artifact := &Artifact{ContractName: "Stop", ABI: []byte(`[]`), Bytecode: stopContractBytecode}

	address, err := Deploy(ctx, sim.Client(), key, artifact)

	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(deployer, 0), address)
}
