package txrelayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/sethvargo/go-retry"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/jsonrpc"
	"github.com/umbracle/ethgo/wallet"
)

const (
	DefaultGasPrice   = 1879048192 // 0x70000000
	DefaultGasLimit   = 5242880    // 0x500000
	DefaultRPCAddress = "http://127.0.0.1:8545"

	numRetries          = 1000
	receiptPollInterval = 50 * time.Millisecond
	receiptSuccess      = uint64(1)
)

var (
	errNoAccounts = errors.New("no accounts registered")
	// ErrTxnFailed is returned when a transaction receipt reports failure
	ErrTxnFailed = errors.New("transaction execution failed")
)

// TxRelayer submits transactions and calls against an EVM json-rpc endpoint
type TxRelayer interface {
	Call(ctx context.Context, from ethgo.Address, to ethgo.Address, input []byte) (string, error)
	SendTransaction(ctx context.Context, txn *ethgo.Transaction, key ethgo.Key) (*ethgo.Receipt, error)
	SendTransactionLocal(ctx context.Context, txn *ethgo.Transaction) (*ethgo.Receipt, error)
	Client() *jsonrpc.Client
}

var _ TxRelayer = (*TxRelayerImpl)(nil)

type TxRelayerImpl struct {
	ipAddress      string
	client         *jsonrpc.Client
	receiptTimeout time.Duration
	logger         hclog.Logger
}

func NewTxRelayer(opts ...TxRelayerOption) (TxRelayer, error) {
	t := &TxRelayerImpl{
		ipAddress:      DefaultRPCAddress,
		receiptTimeout: receiptPollInterval,
		logger:         hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		client, err := jsonrpc.NewClient(t.ipAddress)
		if err != nil {
			return nil, err
		}

		t.client = client
	}

	return t, nil
}

// Call executes a message call immediately without creating a transaction
func (t *TxRelayerImpl) Call(_ context.Context, from ethgo.Address, to ethgo.Address, input []byte) (string, error) {
	callMsg := &ethgo.CallMsg{
		From:     from,
		To:       &to,
		Data:     input,
		GasPrice: DefaultGasPrice,
		Gas:      big.NewInt(DefaultGasLimit),
	}

	return t.client.Eth().Call(callMsg, ethgo.Pending)
}

// SendTransaction signs given transaction by provided key and sends it to the blockchain.
// It waits for the receipt and fails when the receipt reports failed execution.
func (t *TxRelayerImpl) SendTransaction(ctx context.Context, txn *ethgo.Transaction,
	key ethgo.Key) (*ethgo.Receipt, error) {
	txnHash, err := t.sendSignedTransaction(txn, key)
	if err != nil {
		return nil, err
	}

	return t.waitForReceipt(ctx, txnHash)
}

func (t *TxRelayerImpl) sendSignedTransaction(txn *ethgo.Transaction, key ethgo.Key) (ethgo.Hash, error) {
	nonce, err := t.client.Eth().GetNonce(key.Address(), ethgo.Pending)
	if err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to get nonce: %w", err)
	}

	chainID, err := t.client.Eth().ChainID()
	if err != nil {
		return ethgo.ZeroHash, err
	}

	txn.Nonce = nonce
	txn.From = key.Address()

	if txn.GasPrice == 0 {
		txn.GasPrice = DefaultGasPrice
	}

	if txn.Gas == 0 {
		txn.Gas = DefaultGasLimit
	}

	signer := wallet.NewEIP155Signer(chainID.Uint64())
	if txn, err = signer.SignTx(txn, key); err != nil {
		return ethgo.ZeroHash, err
	}

	data, err := txn.MarshalRLPTo(nil)
	if err != nil {
		return ethgo.ZeroHash, err
	}

	t.logger.Debug("sending transaction", "from", txn.From, "nonce", txn.Nonce)

	return t.client.Eth().SendRawTransaction(data)
}

// SendTransactionLocal sends non-signed transaction
// (this function is meant only for testing purposes and is about to be removed at some point)
func (t *TxRelayerImpl) SendTransactionLocal(ctx context.Context, txn *ethgo.Transaction) (*ethgo.Receipt, error) {
	accounts, err := t.client.Eth().Accounts()
	if err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		return nil, errNoAccounts
	}

	txn.From = accounts[0]
	txn.Gas = DefaultGasLimit
	txn.GasPrice = DefaultGasPrice

	txnHash, err := t.client.Eth().SendTransaction(txn)
	if err != nil {
		return nil, err
	}

	return t.waitForReceipt(ctx, txnHash)
}

func (t *TxRelayerImpl) Client() *jsonrpc.Client {
	return t.client
}

func (t *TxRelayerImpl) waitForReceipt(ctx context.Context, hash ethgo.Hash) (*ethgo.Receipt, error) {
	backoff := retry.NewConstant(t.receiptTimeout)

	var receipt *ethgo.Receipt

	err := retry.Do(ctx, retry.WithMaxRetries(numRetries, backoff), func(_ context.Context) error {
		r, err := t.client.Eth().GetTransactionReceipt(hash)
		if err != nil && err.Error() != "not found" {
			return err
		}

		if r == nil {
			return retry.RetryableError(fmt.Errorf("receipt of %s not available yet", hash))
		}

		receipt = r

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt of transaction %s: %w", hash, err)
	}

	if receipt.Status != receiptSuccess {
		return receipt, fmt.Errorf("%w: %s", ErrTxnFailed, hash)
	}

	return receipt, nil
}

type TxRelayerOption func(*TxRelayerImpl)

func WithClient(client *jsonrpc.Client) TxRelayerOption {
	return func(t *TxRelayerImpl) {
		t.client = client
	}
}

func WithIPAddress(ipAddress string) TxRelayerOption {
	return func(t *TxRelayerImpl) {
		t.ipAddress = ipAddress
	}
}

func WithReceiptTimeout(receiptTimeout time.Duration) TxRelayerOption {
	return func(t *TxRelayerImpl) {
		t.receiptTimeout = receiptTimeout
	}
}

func WithLogger(logger hclog.Logger) TxRelayerOption {
	return func(t *TxRelayerImpl) {
		t.logger = logger.Named("txrelayer")
	}
}
