package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/url"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// NonceSource selects which transaction count CurrentNonce reports.
type NonceSource string

const (
	NoncePending NonceSource = "pending"
	NonceLatest  NonceSource = "latest"
)

type Config struct {
	RPCURL      string
	NonceSource NonceSource
}

// Client is the go-ethereum backed Backend.
type Client struct {
	endpoint    string
	nonceSource NonceSource
	rpc         *rpc.Client
	eth         *ethclient.Client
}

// Dial connects to the node. Dialing an HTTP endpoint does not touch the
// network; use Ping to verify reachability.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	rc, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, classify("dial", fmt.Errorf("chain dial %s: %w", redact(cfg.RPCURL), err))
	}
	return NewClient(rc, cfg), nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rc *rpc.Client, cfg Config) *Client {
	src := cfg.NonceSource
	if src == "" {
		src = NoncePending
	}
	return &Client{
		endpoint:    redact(cfg.RPCURL),
		nonceSource: src,
		rpc:         rc,
		eth:         ethclient.NewClient(rc),
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	return id, classify("chain_id", err)
}

func (c *Client) CurrentNonce(ctx context.Context, account common.Address) (uint64, error) {
	var (
		n   uint64
		err error
	)
	if c.nonceSource == NonceLatest {
		n, err = c.eth.NonceAt(ctx, account, nil)
	} else {
		n, err = c.eth.PendingNonceAt(ctx, account)
	}
	return n, classify("nonce", err)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	return price, classify("gas_price", err)
}

func (c *Client) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	gas, err := c.eth.EstimateGas(ctx, call)
	return gas, classify("estimate_gas", err)
}

func (c *Client) SubmitSignedTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw))
	return hash, classify("send_raw_transaction", err)
}

func (c *Client) CallReadOnly(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	return out, classify("call", err)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.eth.BlockNumber(ctx)
	return classify("ping", err)
}

func (c *Client) Name() string { return "ethereum " + c.endpoint }

func (c *Client) Close() { c.rpc.Close() }

// redact strips credentials and query strings (API keys) from an endpoint URL.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
