package wallet

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC and EIP-1193 error codes the application reacts to.
const (
	CodeUserRejected   = 4001
	CodeRequestPending = -32002
	CodeMethodNotFound = -32601
)

var (
	// ErrNoProvider is returned when no wallet provider is configured.
	ErrNoProvider = errors.New("no wallet provider available")
	// ErrRequestPending is returned when an account request is already waiting for the user.
	ErrRequestPending = errors.New("account request already pending")
	// ErrConnectFailed is returned for any other failed connection attempt.
	ErrConnectFailed = errors.New("wallet connection failed")
)

// ProviderError is a JSON-RPC error with a numeric code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode implements rpc.Error.
func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// ErrorCode extracts the JSON-RPC error code carried by err, if any.
func ErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// IsUserRejected reports whether the user declined the request in their wallet.
func IsUserRejected(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeUserRejected
}

// IsRequestPending reports whether the provider refused because a request is already pending.
func IsRequestPending(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeRequestPending
}
