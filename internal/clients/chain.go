// Package clients holds the boundary with the chain transport and the wallet.
// The engine talks to the network only through the RPC interface and receives
// signing capability as an opaque key handle; it never sees key material and
// never decodes wire payloads outside this package.
package clients

import "context"

// Call is a composed runtime call. Parameter names and units must match the
// target chain bit-for-bit.
type Call struct {
	Module   string
	Function string
	Params   map[string]any
}

// SubmitOptions controls how long Submit blocks. With both flags unset the
// submission is fire-and-forget: success means successful broadcast only.
type SubmitOptions struct {
	WaitForInclusion    bool
	WaitForFinalization bool
}

// Receipt is the decoded outcome of a submission.
type Receipt struct {
	// Included is true once the extrinsic landed in a block.
	Included bool
	// Success is the on-chain verdict; only meaningful when Included.
	Success bool
	// ErrorMessage carries the chain-supplied error text verbatim.
	ErrorMessage string
	BlockHash    string
}

// SigningKey is the wallet collaborator's opaque signing handle.
type SigningKey interface {
	Address() string
	Sign(payload []byte) ([]byte, error)
}

// RPC is the chain transport boundary. Implementations own connection
// management, call encoding and inclusion polling. A transport-level error
// from Submit means the extrinsic may or may not have landed.
type RPC interface {
	Submit(ctx context.Context, call Call, key SigningKey, opts SubmitOptions) (Receipt, error)
	Query(ctx context.Context, module, item string, params []any, blockHash string) (any, error)
	QueryMany(ctx context.Context, module, item string, keys [][]any, blockHash string) ([]any, error)
	GetConstant(ctx context.Context, module, name string) (any, error)
	ChainHead(ctx context.Context) (string, error)
}
