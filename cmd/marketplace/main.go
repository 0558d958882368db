package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/iyhunko/dapp-marketplace/internal/chain"
	"github.com/iyhunko/dapp-marketplace/internal/config"
	httpAPI "github.com/iyhunko/dapp-marketplace/internal/http"
	"github.com/iyhunko/dapp-marketplace/internal/logger"
	"github.com/iyhunko/dapp-marketplace/internal/metrics"
	"github.com/iyhunko/dapp-marketplace/internal/service"
	sqspkg "github.com/iyhunko/dapp-marketplace/internal/sqs"
	"github.com/iyhunko/dapp-marketplace/internal/storage"
	"github.com/iyhunko/dapp-marketplace/internal/wallet"
)

const shutdownTimeout = 10 * time.Second

func main() {
	conf, err := config.LoadFromEnv()
	handleErr("loading config", err)
	logger.InitJSONLogger(conf.DebugMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Without ETH_RPC_URL the app runs like a browser without a wallet extension
	var provider wallet.Provider
	var contract service.ProductContract
	if conf.Chain.RPCURL != "" {
		rpcProvider, err := wallet.DialRPCProvider(ctx, conf.Chain.RPCURL, conf.Chain.AccountsPollInterval)
		handleErr("dialing wallet provider", err)
		defer rpcProvider.Close()
		provider = rpcProvider

		address, err := contractAddress(conf.Chain.ContractAddress)
		handleErr("reading contract address", err)
		manager, err := chain.NewProductManager(address, rpcProvider)
		handleErr("binding contract", err)
		contract = service.NewContract(manager)
		slog.Info("Contract bound", slog.String("address", address.Hex()))
	} else {
		slog.Warn("No wallet provider configured", slog.String("env", config.EthRPCURLEnv))
	}

	uploader, err := newUploader(ctx, conf.Storage)
	handleErr("creating storage uploader", err)

	// Product created notifications are optional
	var outbox *service.Outbox
	workerDone := make(chan struct{})
	if conf.AWS.SQSQueueURL != "" {
		sqsClient, err := sqspkg.NewClient(ctx, conf.AWS)
		handleErr("creating SQS client", err)
		outbox = service.NewOutbox(service.DefaultOutboxAttempts)
		outboxWorker := service.NewOutboxWorker(outbox, sqspkg.NewPublisher(sqsClient, conf.AWS.SQSQueueURL), service.DefaultOutboxInterval)
		go func() {
			defer close(workerDone)
			outboxWorker.Start(ctx)
		}()
	} else {
		close(workerDone)
	}

	workspaces := service.NewWorkspaces(provider, contract, uploader, outbox,
		service.WithIdleTimeout(conf.Workspaces.IdleTimeout),
		service.WithMaxWorkspaces(conf.Workspaces.Max))
	defer workspaces.Close()
	go workspaces.Start(ctx)

	if !conf.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := httpAPI.InitRouter(conf, gin.New(), workspaces)
	handleErr("initializing router", err)

	httpServer := &http.Server{
		Addr:              ":" + conf.HTTPServer.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("HTTP server starting", slog.String("port", conf.HTTPServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			handleErr("listening to HTTP requests", err)
		}
	}()

	metricsServer := metrics.StartMetricsServer(conf.MetricsServer.Port)

	<-ctx.Done()
	slog.Info("Shutting down gracefully...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", slog.Any("err", err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics server shutdown failed", slog.Any("err", err))
	}
	<-workerDone
}

func contractAddress(configured string) (common.Address, error) {
	if configured == "" {
		return common.HexToAddress(chain.DefaultContractAddress), nil
	}
	if !common.IsHexAddress(configured) {
		return common.Address{}, fmt.Errorf("%w: %s=%q", config.ErrInvalidConfig, config.ContractAddressEnv, configured)
	}
	return common.HexToAddress(configured), nil
}

func newUploader(ctx context.Context, conf config.StorageConfig) (storage.Uploader, error) {
	switch conf.Backend {
	case config.StorageBackendFilebase:
		client, err := storage.NewFilebaseClient(ctx, conf.Filebase.Endpoint, conf.Filebase.AccessKey, conf.Filebase.SecretKey)
		if err != nil {
			return nil, err
		}
		return storage.NewFilebase(client, conf.Filebase.Bucket, conf.GatewayHost), nil
	default:
		if conf.Token == "" {
			slog.Warn("No storage token configured, image uploads will fail", slog.String("env", config.Web3StorageTokenEnv))
		}
		return storage.NewWeb3Storage(conf.APIURL, conf.Token, conf.GatewayHost), nil
	}
}

func handleErr(msg string, err error) {
	if err != nil {
		log.Fatalf("error while %s: %v", msg, err)
	}
}
