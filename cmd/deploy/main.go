package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/iyhunko/dapp-marketplace/internal/chain"
	"github.com/iyhunko/dapp-marketplace/internal/config"
	"github.com/iyhunko/dapp-marketplace/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	conf, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if err := conf.ValidateDeployer(); err != nil {
		return err
	}
	logger.InitJSONLogger(conf.DebugMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	artifact, err := chain.LoadArtifact(conf.Deploy.ArtifactPath)
	if err != nil {
		return err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(conf.Deploy.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", config.DeployerPrivateKeyEnv, err)
	}

	client, err := ethclient.DialContext(ctx, conf.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", conf.Chain.RPCURL, err)
	}
	defer client.Close()

	slog.Debug("Deploying contract",
		slog.String("contract", artifact.ContractName),
		slog.String("deployer", crypto.PubkeyToAddress(key.PublicKey).Hex()))

	address, err := chain.Deploy(ctx, client, key, artifact)
	if err != nil {
		return err
	}

	fmt.Printf("ProductManager deployed to: %s\n", address.Hex())
	return nil
}
