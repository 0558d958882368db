package integration

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/iyhunko/dapp-marketplace/internal/chain"
	"github.com/iyhunko/dapp-marketplace/internal/config"
	httpAPI "github.com/iyhunko/dapp-marketplace/internal/http"
	"github.com/iyhunko/dapp-marketplace/internal/service"
	"github.com/iyhunko/dapp-marketplace/internal/storage"
	sqspkg "github.com/iyhunko/dapp-marketplace/internal/sqs"
	"github.com/iyhunko/dapp-marketplace/internal/wallet"
)

const (
	storageToken = "integration-token"
	queueURL     = "https://sqs.us-east-1.amazonaws.com/000000000000/product-notifications"
	pollInterval = 10 * time.Millisecond
)

// DevNode is an in-memory development node with unlocked accounts and a
// ProductManager contract deployed at chain.DefaultContractAddress.
type DevNode struct {
	abi abi.ABI

	mu       sync.Mutex
	accounts []common.Address
	products []chain.OnChainProduct
	receipts map[common.Hash]*chain.Receipt
	block    uint64
	reject   bool
}

type callArgs struct {
	From *common.Address `json:"from"`
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

func newDevNode(accounts ...common.Address) (*DevNode, error) {
	parsed, err := abi.JSON(strings.NewReader(chain.ProductManagerABI))
	if err != nil {
		return nil, err
	}
	return &DevNode{abi: parsed, accounts: accounts, receipts: map[common.Hash]*chain.Receipt{}}, nil
}

// Accounts serves eth_accounts.
func (n *DevNode) Accounts() []common.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]common.Address{}, n.accounts...)
}

// Call serves eth_call for getAllProducts.
func (n *DevNode) Call(args callArgs, _ string) (hexutil.Bytes, error) {
	if args.To != common.HexToAddress(chain.DefaultContractAddress) {
		return hexutil.Bytes{}, nil
	}
	method, err := n.abi.MethodById(args.Data)
	if err != nil || method.Name != "getAllProducts" {
		return nil, errors.New("execution reverted")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return method.Outputs.Pack(append([]chain.OnChainProduct{}, n.products...))
}

// SendTransaction serves eth_sendTransaction for createProduct.
func (n *DevNode) SendTransaction(args callArgs) (common.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.reject {
		return common.Hash{}, &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User denied transaction signature."}
	}
	if args.From == nil {
		return common.Hash{}, errors.New("missing sender")
	}

	method, err := n.abi.MethodById(args.Data)
	if err != nil || method.Name != "createProduct" {
		return common.Hash{}, errors.New("execution reverted")
	}
	values, err := method.Inputs.Unpack(args.Data[4:])
	if err != nil {
		return common.Hash{}, err
	}

	n.block++
	n.products = append(n.products, chain.OnChainProduct{
		Id:          big.NewInt(int64(len(n.products) + 1)),
		Name:        values[0].(string),
		Description: values[1].(string),
		Price:       values[2].(*big.Int),
		Owner:       *args.From,
	})

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], n.block)
	hash := crypto.Keccak256Hash(args.Data, nonce[:])
	n.receipts[hash] = &chain.Receipt{TxHash: hash, BlockNumber: hexutil.Uint64(n.block), Status: 1}
	return hash, nil
}

// GetTransactionReceipt serves eth_getTransactionReceipt.
func (n *DevNode) GetTransactionReceipt(hash common.Hash) (*chain.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.receipts[hash], nil
}

// SetAccounts changes the authorized accounts.
func (n *DevNode) SetAccounts(accounts ...common.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts = accounts
}

// RejectTransactions makes the wallet decline every transaction.
func (n *DevNode) RejectTransactions(reject bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reject = reject
}

// Products returns what the contract stores.
func (n *DevNode) Products() []chain.OnChainProduct {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]chain.OnChainProduct{}, n.products...)
}

// MemoryQueue is an SQS queue kept in memory.
type MemoryQueue struct {
	mu       sync.Mutex
	messages []types.Message
	deleted  []string
}

func (q *MemoryQueue) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.NewString()
	q.messages = append(q.messages, types.Message{
		MessageId:         aws.String(id),
		ReceiptHandle:     aws.String(id),
		Body:              params.MessageBody,
		MessageAttributes: params.MessageAttributes,
	})
	return &sqs.SendMessageOutput{MessageId: aws.String(id)}, nil
}

func (q *MemoryQueue) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	q.mu.Lock()
	messages := q.messages
	q.messages = nil
	q.mu.Unlock()

	if len(messages) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return &sqs.ReceiveMessageOutput{Messages: messages}, nil
}

func (q *MemoryQueue) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

// Deleted returns the receipt handles of processed messages.
func (q *MemoryQueue) Deleted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.deleted...)
}

// StorageAPI fakes the web3.storage upload endpoint.
type StorageAPI struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
}

func newStorageAPI() *StorageAPI {
	s := &StorageAPI{files: map[string][]byte{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.upload))
	return s
}

func (s *StorageAPI) upload(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/upload" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+storageToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	buf, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cid := fmt.Sprintf("bafy%x", crypto.Keccak256(buf)[:8])

	s.mu.Lock()
	s.files[cid+"/"+header.Filename] = buf
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"cid": cid})
}

// Files returns the uploaded files keyed by "<cid>/<filename>".
func (s *StorageAPI) Files() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make(map[string][]byte, len(s.files))
	for k, v := range s.files {
		files[k] = v
	}
	return files
}

// Marketplace is the whole application wired the way cmd/marketplace wires it.
type Marketplace struct {
	Node       *DevNode
	Queue      *MemoryQueue
	Storage    *StorageAPI
	Outbox     *service.Outbox
	Worker     *service.OutboxWorker
	Workspaces *service.Workspaces
	Router     *gin.Engine
}

// StartMarketplace starts a marketplace whose node authorizes accounts.
func StartMarketplace(t *testing.T, accounts ...common.Address) *Marketplace {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := newDevNode(accounts...)
	if err != nil {
		t.Fatalf("could not create dev node: %s", err)
	}
	server := rpc.NewServer()
	if err := server.RegisterName("eth", node); err != nil {
		t.Fatalf("could not register dev node: %s", err)
	}
	client := rpc.DialInProc(server)
	provider := wallet.NewRPCProvider(client, pollInterval)

	manager, err := chain.NewProductManager(common.HexToAddress(chain.DefaultContractAddress), provider,
		chain.WithReceiptPollInterval(pollInterval))
	if err != nil {
		t.Fatalf("could not bind contract: %s", err)
	}

	storageAPI := newStorageAPI()
	uploader := storage.NewWeb3Storage(storageAPI.URL, storageToken, storage.DefaultGatewayHost)

	queue := &MemoryQueue{}
	outbox := service.NewOutbox(service.DefaultOutboxAttempts)
	worker := service.NewOutboxWorker(outbox, sqspkg.NewPublisher(queue, queueURL), time.Hour)

	workspaces := service.NewWorkspaces(provider, service.NewContract(manager), uploader, outbox)

	conf := &config.Config{SessionSecret: "integration-secret"}
	router, err := httpAPI.InitRouter(conf, gin.New(), workspaces)
	if err != nil {
		t.Fatalf("could not init router: %s", err)
	}

	t.Cleanup(func() {
		workspaces.Close()
		client.Close()
		server.Stop()
		storageAPI.Close()
	})

	return &Marketplace{
		Node:       node,
		Queue:      queue,
		Storage:    storageAPI,
		Outbox:     outbox,
		Worker:     worker,
		Workspaces: workspaces,
		Router:     router,
	}
}
