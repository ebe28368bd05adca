package chain

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"ticket-bridge/internal/status"
	"ticket-bridge/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

var _ Client = (*EthClient)(nil)

const actionReceipt Action = "receipt"

type Config struct {
	RPCURL          string
	ContractAddress string

	// ReceiptPollInterval is the delay between eth_getTransactionReceipt polls.
	ReceiptPollInterval time.Duration
	// ReceiptTimeout bounds the wait for a submitted transaction to be mined.
	// Expiry is reported as unavailable together with the tx hash.
	ReceiptTimeout time.Duration
}

// EthClient talks to the TicketNFT contract over JSON-RPC. Transactions are
// sent with eth_sendTransaction, so the node signs for the caller's address.
type EthClient struct {
	rpc      *rpc.Client
	eth      *ethclient.Client
	abi      abi.ABI
	contract common.Address
	breaker  *utils.CircuitBreaker

	pollInterval   time.Duration
	receiptTimeout time.Duration
}

// Dial connects to the node at cfg.RPCURL.
func Dial(ctx context.Context, cfg Config) (*EthClient, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", cfg.RPCURL)
	}
	return NewEthClient(rpcClient, cfg)
}

// NewEthClient wraps an existing RPC connection.
func NewEthClient(rpcClient *rpc.Client, cfg Config) (*EthClient, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, errors.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	contractABI, err := TicketABI()
	if err != nil {
		return nil, err
	}

	c := &EthClient{
		rpc:            rpcClient,
		eth:            ethclient.NewClient(rpcClient),
		abi:            contractABI,
		contract:       common.HexToAddress(cfg.ContractAddress),
		pollInterval:   cfg.ReceiptPollInterval,
		receiptTimeout: cfg.ReceiptTimeout,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = time.Second
	}
	if c.receiptTimeout <= 0 {
		c.receiptTimeout = 2 * time.Minute
	}

	c.breaker = utils.NewCircuitBreakerWithSettings(utils.BreakerSettings{
		Name:         "eth-rpc",
		MaxRequests:  20,
		FailureRatio: 0.5,
		Timeout:      30 * time.Second,
		IsFailure: func(err error) bool {
			return err != nil && errors.Is(classify(err), status.ErrChainUnavailable)
		},
		OnStateChange: func(name string, from, to utils.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return c, nil
}

func (c *EthClient) Close() {
	c.eth.Close()
}

func (c *EthClient) Mint(ctx context.Context, opts TxOpts, to common.Address, price *big.Int, tokenURI string) (*Result, error) {
	return c.transact(ctx, ActionMint, opts, "mintTicket", to, price, tokenURI)
}

func (c *EthClient) Buy(ctx context.Context, opts TxOpts, tokenURI string) (*Result, error) {
	return c.transact(ctx, ActionBuy, opts, "buyTicket", tokenURI)
}

func (c *EthClient) ListForSale(ctx context.Context, opts TxOpts, tokenID, price *big.Int) (*Result, error) {
	return c.transact(ctx, ActionList, opts, "listTicketForSale", tokenID, price)
}

func (c *EthClient) CancelSale(ctx context.Context, opts TxOpts, tokenID *big.Int) (*Result, error) {
	return c.transact(ctx, ActionCancel, opts, "cancelSale", tokenID)
}

func (c *EthClient) Purchase(ctx context.Context, opts TxOpts, tokenID *big.Int) (*Result, error) {
	return c.transact(ctx, ActionPurchase, opts, "purchaseTicket", tokenID)
}

func (c *EthClient) Validate(ctx context.Context, opts TxOpts, tokenID *big.Int) (*Result, error) {
	return c.transact(ctx, ActionValidate, opts, "validateTicket", tokenID)
}

func (c *EthClient) Withdraw(ctx context.Context, opts TxOpts) (*Result, error) {
	return c.transact(ctx, ActionWithdraw, opts, "withdraw")
}

func (c *EthClient) TransactionResult(ctx context.Context, txHash common.Hash) (*Result, error) {
	res, err := c.breaker.Execute(ctx, func() (any, error) {
		return c.eth.TransactionReceipt(ctx, txHash)
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, &Error{Action: actionReceipt, Kind: status.ErrChainUnavailable, TxHash: txHash.Hex(), Err: errors.New("receipt not found")}
	}
	if err != nil {
		return nil, &Error{Action: actionReceipt, Kind: classify(err), TxHash: txHash.Hex(), Err: err}
	}

	return c.result(actionReceipt, res.(*types.Receipt))
}

func (c *EthClient) Health(ctx context.Context) error {
	_, err := c.breaker.Execute(ctx, func() (any, error) {
		return c.eth.BlockNumber(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "eth_blockNumber")
	}
	return nil
}

// Accounts lists the addresses the node can sign for.
func (c *EthClient) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, errors.Wrap(err, "eth_accounts")
	}
	return accounts, nil
}

// sendTxArgs is the eth_sendTransaction parameter object.
type sendTxArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data"`
}

func (c *EthClient) transact(ctx context.Context, action Action, opts TxOpts, method string, args ...any) (*Result, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, &Error{Action: action, Kind: status.ErrChainRejected, Err: errors.Wrapf(err, "pack %s", method)}
	}

	txArgs := sendTxArgs{
		From: opts.From,
		To:   &c.contract,
		Data: data,
	}
	if opts.Gas > 0 {
		gas := hexutil.Uint64(opts.Gas)
		txArgs.Gas = &gas
	}
	if opts.GasPrice != nil {
		txArgs.GasPrice = (*hexutil.Big)(opts.GasPrice)
	}
	if opts.Value != nil && opts.Value.Sign() > 0 {
		txArgs.Value = (*hexutil.Big)(opts.Value)
	}

	res, err := c.breaker.Execute(ctx, func() (any, error) {
		var hash common.Hash
		err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", txArgs)
		return hash, err
	})
	if err != nil {
		return nil, &Error{Action: action, Kind: classify(err), Err: errors.Wrap(err, "eth_sendTransaction")}
	}
	txHash := res.(common.Hash)

	receipt, err := c.waitReceipt(ctx, txHash)
	if err != nil {
		return nil, &Error{Action: action, Kind: status.ErrChainUnavailable, TxHash: txHash.Hex(), Err: err}
	}

	return c.result(action, receipt)
}

// waitReceipt polls until the transaction is mined or receiptTimeout expires.
// Transport errors while polling are retried since reads are safe to repeat.
func (c *EthClient) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	var (
		receipt *types.Receipt
		lastErr error
	)
	op := func() error {
		r, err := c.eth.TransactionReceipt(waitCtx, txHash)
		if err != nil {
			lastErr = err
			return err
		}
		receipt = r
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), waitCtx)
	if err := backoff.Retry(op, b); err != nil {
		if lastErr != nil && !errors.Is(lastErr, ethereum.NotFound) {
			return nil, errors.Wrapf(lastErr, "wait receipt %s", txHash.Hex())
		}
		return nil, errors.Wrapf(err, "wait receipt %s", txHash.Hex())
	}

	return receipt, nil
}

func (c *EthClient) result(action Action, receipt *types.Receipt) (*Result, error) {
	r := Receipt{
		TxHash:    receipt.TxHash.Hex(),
		Status:    receipt.Status,
		GasUsed:   receipt.GasUsed,
		BlockHash: receipt.BlockHash.Hex(),
	}
	if receipt.BlockNumber != nil {
		r.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &Error{Action: action, Kind: status.ErrChainRejected, TxHash: r.TxHash, Err: errors.New("transaction reverted")}
	}

	return &Result{
		Receipt: r,
		Events:  decodeEvents(c.abi, c.contract, receipt.Logs),
	}, nil
}

// classify maps an RPC failure to ErrChainRejected when the node answered
// with a JSON-RPC error about the transaction itself, and to
// ErrChainUnavailable for transport failures, timeouts, an open breaker and
// node-side resource errors.
func classify(err error) error {
	if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return status.ErrChainUnavailable
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case -32603:
			// Hardhat and Ganache report reverts as internal errors.
			if isRevert(err) {
				return status.ErrChainRejected
			}
			return status.ErrChainUnavailable
		case -32005, -32002:
			// limit exceeded, resource unavailable
			return status.ErrChainUnavailable
		default:
			return status.ErrChainRejected
		}
	}

	return status.ErrChainUnavailable
}

func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert") || strings.Contains(msg, "vm exception") ||
		strings.Contains(msg, "invalid opcode")
}
