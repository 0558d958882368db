package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DebugModeEnv is the environment variable for debug mode.
	DebugModeEnv = "DEBUG_MODE"

	// HTTPServerPortEnv is the environment variable for HTTP server port.
	HTTPServerPortEnv = "HTTP_SERVER_PORT"

	// MetricsServerPortEnv is the environment variable for metrics server port.
	MetricsServerPortEnv = "METRICS_SERVER_PORT"

	// EnvFilePath is the environment variable for .env file path (only for local/test environment).
	EnvFilePath = "ENV_PATH"

	// DefaultEnvFilePath is the default path to the .env file.
	DefaultEnvFilePath = ".env"

	// SessionSecretEnv is the environment variable for the cookie session signing key.
	SessionSecretEnv = "SESSION_SECRET"

	// EthRPCURLEnv is the environment variable for the wallet provider JSON-RPC endpoint.
	// When empty the application runs without a wallet provider.
	EthRPCURLEnv = "ETH_RPC_URL"

	// ContractAddressEnv overrides the built-in ProductManager address.
	ContractAddressEnv = "CONTRACT_ADDRESS"

	// AccountsPollIntervalEnv is the environment variable for the account change polling interval.
	AccountsPollIntervalEnv = "ACCOUNTS_POLL_INTERVAL"

	// WorkspaceIdleTimeoutEnv is how long a browser session may stay unused before it is released.
	WorkspaceIdleTimeoutEnv = "WORKSPACE_IDLE_TIMEOUT"

	// MaxWorkspacesEnv caps the number of browser sessions kept in memory.
	MaxWorkspacesEnv = "MAX_WORKSPACES"

	// StorageBackendEnv selects the storage uploader ("web3storage" or "filebase").
	StorageBackendEnv = "STORAGE_BACKEND"

	// Web3StorageTokenEnv is the environment variable for the web3.storage access token.
	Web3StorageTokenEnv = "WEB3_STORAGE_TOKEN"

	// LegacyWeb3StorageTokenEnv is the token variable name used by the old frontend build.
	LegacyWeb3StorageTokenEnv = "VITE_WEB3_STORAGE_TOKEN"

	// Web3StorageAPIURLEnv is the environment variable for the web3.storage API base URL.
	Web3StorageAPIURLEnv = "WEB3_STORAGE_API_URL"

	// IPFSGatewayHostEnv is the environment variable for the IPFS gateway host.
	IPFSGatewayHostEnv = "IPFS_GATEWAY_HOST"

	// FilebaseBucketEnv is the environment variable for the Filebase IPFS bucket.
	FilebaseBucketEnv = "FILEBASE_BUCKET"

	// FilebaseEndpointEnv is the environment variable for the Filebase S3 endpoint.
	FilebaseEndpointEnv = "FILEBASE_ENDPOINT"

	// FilebaseAccessKeyEnv is the environment variable for the Filebase access key.
	FilebaseAccessKeyEnv = "FILEBASE_ACCESS_KEY"

	// FilebaseSecretKeyEnv is the environment variable for the Filebase secret key.
	FilebaseSecretKeyEnv = "FILEBASE_SECRET_KEY"

	// AWSRegionEnv is the environment variable for AWS region.
	AWSRegionEnv = "AWS_REGION"

	// AWSEndpointEnv is the environment variable for AWS endpoint.
	AWSEndpointEnv = "AWS_ENDPOINT"

	// SQSQueueURLEnv is the environment variable for SQS queue URL.
	SQSQueueURLEnv = "SQS_QUEUE_URL"

	// DeployerPrivateKeyEnv is the environment variable for the hex private key used by cmd/deploy.
	DeployerPrivateKeyEnv = "DEPLOYER_PRIVATE_KEY"

	// ContractArtifactPathEnv is the environment variable for the compiled contract artifact.
	ContractArtifactPathEnv = "CONTRACT_ARTIFACT_PATH"
)

const (
	// StorageBackendWeb3Storage uploads through the web3.storage HTTP API.
	StorageBackendWeb3Storage = "web3storage"
	// StorageBackendFilebase uploads through the Filebase S3-compatible API.
	StorageBackendFilebase = "filebase"

	defaultHTTPServerPort       = "8080"
	defaultMetricsServerPort    = "9090"
	defaultWeb3StorageAPIURL    = "https://api.web3.storage"
	defaultIPFSGatewayHost      = "dweb.link"
	defaultFilebaseEndpoint     = "https://s3.filebase.com"
	defaultAccountsPollInterval = 2 * time.Second
	defaultArtifactPath         = "artifacts/contracts/ProductManager.sol/ProductManager.json"
	defaultSessionSecret        = "marketplace-dev-secret"
	defaultWorkspaceIdleTimeout = 30 * time.Minute
	defaultMaxWorkspaces        = 10000
)

var (
	// ErrMissingConfig is returned when required configuration values are missing.
	ErrMissingConfig = errors.New("missing config data")

	// ErrInvalidConfig is returned when a configuration value cannot be used.
	ErrInvalidConfig = errors.New("invalid config data")
)

// Config represents the application configuration.
type Config struct {
	DebugMode     bool
	HTTPServer    Server
	MetricsServer Server
	SessionSecret string
	Workspaces    WorkspacesConfig
	Chain         ChainConfig
	Storage       StorageConfig
	AWS           AWSConfig
	Deploy        DeployConfig
}

// WorkspacesConfig bounds the per-browser state kept by the marketplace.
type WorkspacesConfig struct {
	IdleTimeout time.Duration
	Max         int
}

// ChainConfig holds the wallet provider and contract settings.
type ChainConfig struct {
	RPCURL               string
	ContractAddress      string
	AccountsPollInterval time.Duration
}

// StorageConfig holds the content-addressed storage settings.
type StorageConfig struct {
	Backend     string
	Token       string
	APIURL      string
	GatewayHost string
	Filebase    FilebaseConfig
}

// FilebaseConfig holds the S3-compatible credentials for the Filebase backend.
type FilebaseConfig struct {
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// AWSConfig represents AWS-specific configuration settings.
type AWSConfig struct {
	Region      string
	Endpoint    string
	SQSQueueURL string
}

// DeployConfig holds the settings used by the one-shot contract deployment.
type DeployConfig struct {
	PrivateKey   string
	ArtifactPath string
}

// Server represents server configuration settings.
type Server struct {
	Port string
}

func allNonEmpty(keyValues map[string]string) error {
	for key, value := range keyValues {
		if value == "" {
			slog.Error("configuration validation failed", slog.String("key", key), slog.String("error", "value is empty"))
			return fmt.Errorf("%w for key: %s", ErrMissingConfig, key)
		}
	}
	return nil
}

func allNumbers(keyValues map[string]string) error {
	for key, value := range keyValues {
		_, err := strconv.Atoi(value)
		if err != nil {
			slog.Error("configuration validation failed", slog.String("key", key), slog.String("value", value), slog.String("error", err.Error()))
			return fmt.Errorf("invalid number for key %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	// Validate server ports
	if err := allNonEmpty(map[string]string{
		HTTPServerPortEnv:    c.HTTPServer.Port,
		MetricsServerPortEnv: c.MetricsServer.Port,
	}); err != nil {
		return fmt.Errorf("server port configuration incomplete: %w", err)
	}

	if err := allNumbers(map[string]string{
		HTTPServerPortEnv:    c.HTTPServer.Port,
		MetricsServerPortEnv: c.MetricsServer.Port,
	}); err != nil {
		return fmt.Errorf("invalid port number: %w", err)
	}

	switch c.Storage.Backend {
	case StorageBackendWeb3Storage:
	case StorageBackendFilebase:
		if err := allNonEmpty(map[string]string{
			FilebaseBucketEnv: c.Storage.Filebase.Bucket,
		}); err != nil {
			return fmt.Errorf("filebase configuration incomplete: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown %s %q", ErrInvalidConfig, StorageBackendEnv, c.Storage.Backend)
	}

	if c.Chain.AccountsPollInterval <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, AccountsPollIntervalEnv)
	}

	if c.Workspaces.IdleTimeout <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, WorkspaceIdleTimeoutEnv)
	}
	if c.Workspaces.Max <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, MaxWorkspacesEnv)
	}

	return nil
}

// ValidateQueue checks the settings needed by services that consume the notification queue.
func (c *Config) ValidateQueue() error {
	if err := allNonEmpty(map[string]string{
		SQSQueueURLEnv: c.AWS.SQSQueueURL,
	}); err != nil {
		return fmt.Errorf("AWS configuration incomplete: %w", err)
	}
	return nil
}

// ValidateDeployer checks the settings needed to deploy the contract.
func (c *Config) ValidateDeployer() error {
	if err := allNonEmpty(map[string]string{
		EthRPCURLEnv:            c.Chain.RPCURL,
		DeployerPrivateKeyEnv:   c.Deploy.PrivateKey,
		ContractArtifactPathEnv: c.Deploy.ArtifactPath,
	}); err != nil {
		return fmt.Errorf("deploy configuration incomplete: %w", err)
	}
	return nil
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if val, err := strconv.ParseBool(os.Getenv(name)); err == nil {
		return val
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if val, err := time.ParseDuration(os.Getenv(name)); err == nil {
		return val
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if val, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return val
	}
	return defaultValue
}

func getEnv(name, defaultValue string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return defaultValue
}

// ApplyEnvFile loads environment variables from the specified .env files.
func ApplyEnvFile(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables and validates it.
func LoadFromEnv() (*Config, error) {
	envPath := os.Getenv(EnvFilePath)
	if envPath == "" {
		envPath = DefaultEnvFilePath
	}
	err := ApplyEnvFile(envPath)
	if err != nil {
		// just log the error, maybe all envs are set in another way
		slog.Info("failed to load from .env", slog.Any("err", err))
	}

	conf := &Config{
		DebugMode: getEnvAsBool(DebugModeEnv, false),
		HTTPServer: Server{
			Port: getEnv(HTTPServerPortEnv, defaultHTTPServerPort),
		},
		MetricsServer: Server{
			Port: getEnv(MetricsServerPortEnv, defaultMetricsServerPort),
		},
		SessionSecret: getEnv(SessionSecretEnv, defaultSessionSecret),
		Workspaces: WorkspacesConfig{
			IdleTimeout: getEnvAsDuration(WorkspaceIdleTimeoutEnv, defaultWorkspaceIdleTimeout),
			Max:         getEnvAsInt(MaxWorkspacesEnv, defaultMaxWorkspaces),
		},
		Chain: ChainConfig{
			RPCURL:               os.Getenv(EthRPCURLEnv),
			ContractAddress:      os.Getenv(ContractAddressEnv),
			AccountsPollInterval: getEnvAsDuration(AccountsPollIntervalEnv, defaultAccountsPollInterval),
		},
		Storage: StorageConfig{
			Backend:     getEnv(StorageBackendEnv, StorageBackendWeb3Storage),
			Token:       getEnv(Web3StorageTokenEnv, os.Getenv(LegacyWeb3StorageTokenEnv)),
			APIURL:      getEnv(Web3StorageAPIURLEnv, defaultWeb3StorageAPIURL),
			GatewayHost: getEnv(IPFSGatewayHostEnv, defaultIPFSGatewayHost),
			Filebase: FilebaseConfig{
				Bucket:    os.Getenv(FilebaseBucketEnv),
				Endpoint:  getEnv(FilebaseEndpointEnv, defaultFilebaseEndpoint),
				AccessKey: os.Getenv(FilebaseAccessKeyEnv),
				SecretKey: os.Getenv(FilebaseSecretKeyEnv),
			},
		},
		AWS: AWSConfig{
			Region:      os.Getenv(AWSRegionEnv),
			Endpoint:    os.Getenv(AWSEndpointEnv),
			SQSQueueURL: os.Getenv(SQSQueueURLEnv),
		},
		Deploy: DeployConfig{
			PrivateKey:   os.Getenv(DeployerPrivateKeyEnv),
			ArtifactPath: getEnv(ContractArtifactPathEnv, defaultArtifactPath),
		},
	}

	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return conf, nil
}
