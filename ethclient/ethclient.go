package ethclient

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrIncompatibleChainID = errors.New("rpc url returned incompatible chainID")

// TxStatus is the best-known state of a submitted anchor transaction.
// A transaction that was never mined has Mined == false and zero
// confirmations, it is up to the caller to decide when to give up on it.
type TxStatus struct {
	Mined         bool
	Reverted      bool
	Confirmations uint64
}

type Client interface {
	ChainID() string
	BlockNumber(ctx context.Context) (uint64, error)
	// SubmitProof sends a signed transaction carrying the receipt proof to
	// the chain's anchor contract and returns the transaction hash.
	SubmitProof(ctx context.Context, proof []byte) (common.Hash, error)
	TransactionStatus(ctx context.Context, txHash common.Hash) (*TxStatus, error)
}

type rpcClient struct {
	chainID       string
	url           string
	timeout       time.Duration
	anchorAddress common.Address
	key           *ecdsa.PrivateKey
	from          common.Address
	signer        types.Signer
	rawClient     *rpc.Client
	client        *ethclient.Client
}

func NewClient(url string, timeout time.Duration, chainID string, anchorAddress common.Address, signerKey string) (Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rawClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("can't dial JSON rpc url: %w", err)
	}
	key, err := crypto.HexToECDSA(signerKey)
	if err != nil {
		return nil, fmt.Errorf("can't parse signer key: %w", err)
	}
	client := &rpcClient{
		chainID:       chainID,
		url:           url,
		timeout:       timeout,
		anchorAddress: anchorAddress,
		key:           key,
		from:          crypto.PubkeyToAddress(key.PublicKey),
		rawClient:     rawClient,
		client:        ethclient.NewClient(rawClient),
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), timeout)
	defer cancel2()
	rpcChainID, err := client.client.ChainID(ctx2)
	if err != nil {
		return nil, fmt.Errorf("can't get chainID: %w", err)
	}
	if rpcChainID.String() != chainID {
		return nil, fmt.Errorf("received chainID %s != expected %s: %w", rpcChainID, chainID, ErrIncompatibleChainID)
	}
	client.signer = types.NewLondonSigner(rpcChainID)
	return client, nil
}

func (c *rpcClient) ChainID() string {
	return c.chainID
}

func (c *rpcClient) BlockNumber(ctx context.Context) (uint64, error) {
	defer ObserveDuration(c.chainID, c.url, "eth_blockNumber")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.client.BlockNumber(ctx)
	ObserveError(c.chainID, c.url, "eth_blockNumber", err)
	return n, err
}

func (c *rpcClient) SubmitProof(ctx context.Context, proof []byte) (common.Hash, error) {
	defer ObserveDuration(c.chainID, c.url, "eth_sendRawTransaction")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var err error
	defer func() {
		ObserveError(c.chainID, c.url, "eth_sendRawTransaction", err)
	}()

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't fetch pending nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't fetch gas price: %w", err)
	}
	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.anchorAddress,
		Data: proof,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't estimate gas: %w", err)
	}
	tx, err := types.SignNewTx(c.key, c.signer, &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &c.anchorAddress,
		Data:     proof,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't sign anchor transaction: %w", err)
	}
	err = c.client.SendTransaction(ctx, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't send anchor transaction: %w", err)
	}
	return tx.Hash(), nil
}

func (c *rpcClient) TransactionStatus(ctx context.Context, txHash common.Hash) (*TxStatus, error) {
	defer ObserveDuration(c.chainID, c.url, "eth_getTransactionReceipt")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	ObserveError(c.chainID, c.url, "eth_getTransactionReceipt", err)
	if errors.Is(err, ethereum.NotFound) {
		return &TxStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't fetch transaction receipt: %w", err)
	}
	head, err := c.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't fetch latest block number: %w", err)
	}
	status := &TxStatus{
		Mined:    true,
		Reverted: receipt.Status == types.ReceiptStatusFailed,
	}
	if included := receipt.BlockNumber.Uint64(); head >= included {
		status.Confirmations = head - included + 1
	}
	return status, nil
}
