package brt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/tidwall/gjson"
)

// Gateway executes a named remote procedure against the node.
// Node-level failures (status "error") are returned as *RPCError; transport
// failures wrap ErrRequestFailed.
type Gateway interface {
	Call(ctx context.Context, method string, params, result any) error
}

// GatewayOptions configures NewGateway. All fields are optional.
type GatewayOptions struct {
	HTTPClient *http.Client
	User       string
	Password   string
}

// RPCGateway speaks JSON-RPC over HTTP to a node.
type RPCGateway struct {
	cli jsonrpc.RPCClient
}

// NewGateway creates a Gateway for the node at url. When User is set every
// request carries HTTP basic auth credentials.
func NewGateway(url string, opts GatewayOptions) *RPCGateway {
	rpcOpts := &jsonrpc.RPCClientOpts{}
	if opts.HTTPClient != nil {
		rpcOpts.HTTPClient = opts.HTTPClient
	}
	if opts.User != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(opts.User + ":" + opts.Password))
		rpcOpts.CustomHeaders = map[string]string{"Authorization": "Basic " + creds}
	}
	return &RPCGateway{cli: jsonrpc.NewClientWithOpts(url, rpcOpts)}
}

// Close releases idle connections held by the underlying HTTP client.
func (g *RPCGateway) Close() error {
	return g.cli.Close()
}

// Call invokes method. The node takes its parameters as a single object
// wrapped in an array.
func (g *RPCGateway) Call(ctx context.Context, method string, params, result any) error {
	var wrapped []any
	if params != nil {
		wrapped = []any{params}
	}

	var raw json.RawMessage
	if err := g.cli.CallForInto(ctx, &raw, method, wrapped); err != nil {
		var envErr *jsonrpc.RPCError
		if errors.As(err, &envErr) {
			return &RPCError{Method: method, Code: fmt.Sprint(envErr.Code), Message: envErr.Message}
		}
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, method, err)
	}

	if err := checkResult(method, raw); err != nil {
		return err
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%w: %s: failed to decode result: %w", ErrRequestFailed, method, err)
	}
	return nil
}

// EndpointLabel reduces a node URL to its host for use as a metrics label.
// Credentials, path and query are dropped.
func EndpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// checkResult surfaces errors the node reports inside a successful envelope.
func checkResult(method string, raw []byte) error {
	res := gjson.ParseBytes(raw)
	token := res.Get("error")
	if res.Get("status").String() != "error" && !token.Exists() {
		return nil
	}
	return &RPCError{
		Method:  method,
		Code:    token.String(),
		Message: res.Get("error_message").String(),
	}
}
