package clients

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// HTTPRPC is a minimal JSON-RPC 2.0 implementation of the RPC boundary for
// gateways that expose decoded-JSON storage and runtime-API reads. It is the
// reference transport; heavier transports plug in behind the same interface.
type HTTPRPC struct {
	endpoint string
	client   *http.Client
	nextID   atomic.Uint64
}

// Dial creates an HTTP JSON-RPC client for the given endpoint.
func Dial(endpoint string) *HTTPRPC {
	return &HTTPRPC{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *HTTPRPC) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "rpc transport")
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode rpc response")
	}
	if decoded.Error != nil {
		return nil, errors.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return decoded.Result, nil
}

// Query reads one decoded storage item or runtime-API value.
func (c *HTTPRPC) Query(ctx context.Context, module, item string, params []any, blockHash string) (any, error) {
	raw, err := c.call(ctx, "state_query", module, item, params, blockHash)
	if err != nil {
		return nil, err
	}
	var value any
	return value, json.Unmarshal(raw, &value)
}

// QueryMany reads a set of storage keys in one round trip.
func (c *HTTPRPC) QueryMany(ctx context.Context, module, item string, keys [][]any, blockHash string) ([]any, error) {
	raw, err := c.call(ctx, "state_queryMany", module, item, keys, blockHash)
	if err != nil {
		return nil, err
	}
	var values []any
	return values, json.Unmarshal(raw, &values)
}

// GetConstant reads a runtime constant.
func (c *HTTPRPC) GetConstant(ctx context.Context, module, name string) (any, error) {
	raw, err := c.call(ctx, "state_getConstant", module, name)
	if err != nil {
		return nil, err
	}
	var value any
	return value, json.Unmarshal(raw, &value)
}

// ChainHead returns the current head block hash.
func (c *HTTPRPC) ChainHead(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, "chain_getHead")
	if err != nil {
		return "", err
	}
	var hash string
	return hash, json.Unmarshal(raw, &hash)
}

type submitResult struct {
	Included  bool   `json:"included"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	BlockHash string `json:"block_hash"`
}

// Submit signs the composed call with the wallet's key handle and broadcasts
// it, optionally blocking until inclusion or finalization. A returned error
// means the on-chain outcome is unknown.
func (c *HTTPRPC) Submit(ctx context.Context, call Call, key SigningKey, opts SubmitOptions) (Receipt, error) {
	payload, err := json.Marshal(map[string]any{
		"module":   call.Module,
		"function": call.Function,
		"params":   call.Params,
	})
	if err != nil {
		return Receipt{}, errors.Wrap(err, "marshal call")
	}

	signature, err := key.Sign(payload)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "sign call")
	}

	raw, err := c.call(ctx, "author_submitCall",
		json.RawMessage(payload),
		key.Address(),
		hex.EncodeToString(signature),
		opts.WaitForInclusion,
		opts.WaitForFinalization,
	)
	if err != nil {
		return Receipt{}, err
	}

	var result submitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return Receipt{}, errors.Wrap(err, "decode submit result")
	}
	return Receipt{
		Included:     result.Included,
		Success:      result.Success,
		ErrorMessage: result.Error,
		BlockHash:    result.BlockHash,
	}, nil
}
