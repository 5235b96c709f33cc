// Package ethereum implements adapters.SettlementClient against a
// settlement contract deployed on Ethereum, grounded on go-ethereum's
// ethclient.Client and crypto.Keccak256 (the pack's accounts/abi and
// accounts/abi/bind packages are empty directories with no source, so
// calldata is packed by hand against the contract's known ABI rather than
// generated bindings).
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"

	ethereumclient "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// updateStateSelector is the 4-byte selector for updateState(uint256[]),
// the settlement contract's state-transition entrypoint.
var updateStateSelector = crypto.Keccak256([]byte("updateState(uint256[])"))[:4]

// lastSettledBlockSelector is the selector for the view function
// lastSettledBlock() returning uint256.
var lastSettledBlockSelector = crypto.Keccak256([]byte("lastSettledBlock()"))[:4]

// Client posts state transitions to a settlement contract at target.
type Client struct {
	eth    *ethclient.Client
	key    *ecdsa.PrivateKey
	chain  *big.Int
	target common.Address
}

// Config bundles the parameters needed to dial and sign.
type Config struct {
	RPCURL     string
	PrivateKey *ecdsa.PrivateKey
	ChainID    *big.Int
	Contract   common.Address
}

// New dials rpc and returns a Client posting to cfg.Contract.
func New(ctx context.Context, cfg Config) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, orcherrors.StateUpdateError(fmt.Errorf("dial execution client: %w", err))
	}
	return &Client{eth: eth, key: cfg.PrivateKey, chain: cfg.ChainID, target: cfg.Contract}, nil
}

// UpdateState packs blockNumbers into a call to updateState(uint256[]) and
// submits it as a signed dynamic-fee transaction. The artifact key maps are
// not sent on-chain (the contract verifies against committed fact hashes);
// they are accepted to satisfy adapters.SettlementClient and so the caller
// only needs one entrypoint to move state forward.
func (c *Client) UpdateState(ctx context.Context, blockNumbers []uint64, _, _, _ map[uint64]string) (string, error) {
	sorted := append([]uint64(nil), blockNumbers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	calldata := append([]byte(nil), updateStateSelector...)
	calldata = append(calldata, packUint256Array(sorted)...)

	nonce, err := c.eth.PendingNonceAt(ctx, crypto.PubkeyToAddress(c.key.PublicKey))
	if err != nil {
		return "", orcherrors.StateUpdateError(fmt.Errorf("fetch nonce: %w", err))
	}
	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return "", orcherrors.StateUpdateError(fmt.Errorf("suggest gas tip cap: %w", err))
	}
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", orcherrors.StateUpdateError(fmt.Errorf("fetch latest header: %w", err))
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))

	gasLimit, err := c.eth.EstimateGas(ctx, ethereumclient.CallMsg{
		From: crypto.PubkeyToAddress(c.key.PublicKey),
		To:   &c.target,
		Data: calldata,
	})
	if err != nil {
		return "", orcherrors.StateUpdateError(fmt.Errorf("estimate gas: %w", err))
	}

	txData := &types.DynamicFeeTx{
		ChainID:   c.chain,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit + gasLimit/5, // 20% headroom over the estimate
		To:        &c.target,
		Data:      calldata,
	}

	signer := types.NewLondonSigner(c.chain)
	signedTx, err := types.SignNewTx(c.key, signer, txData)
	if err != nil {
		return "", orcherrors.StateUpdateError(fmt.Errorf("sign state update tx: %w", err))
	}
	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return "", orcherrors.StateUpdateError(fmt.Errorf("send state update tx: %w", err))
	}

	return signedTx.Hash().Hex(), nil
}

func (c *Client) TxStatus(ctx context.Context, txHash string) (bool, uint64, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereumclient.NotFound) {
			return false, 0, nil
		}
		return false, 0, orcherrors.StateUpdateError(fmt.Errorf("fetch receipt for %s: %w", txHash, err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false, 0, nil
	}
	last, err := c.GetLastSettledBlock(ctx)
	if err != nil {
		return true, 0, err
	}
	return true, last, nil
}

func (c *Client) GetLastSettledBlock(ctx context.Context) (uint64, error) {
	result, err := c.eth.CallContract(ctx, ethereumclient.CallMsg{
		To:   &c.target,
		Data: lastSettledBlockSelector,
	}, nil)
	if err != nil {
		return 0, orcherrors.StateUpdateError(fmt.Errorf("call lastSettledBlock: %w", err))
	}
	if len(result) < 32 {
		return 0, orcherrors.StateUpdateError(fmt.Errorf("lastSettledBlock returned %d bytes, want >=32", len(result)))
	}
	return new(big.Int).SetBytes(result[len(result)-32:]).Uint64(), nil
}

// packUint256Array ABI-encodes a dynamic uint256[] argument: one word for
// the head offset, one word for the array length, then one word per
// element.
func packUint256Array(values []uint64) []byte {
	out := make([]byte, 0, 64+32*len(values))
	out = append(out, leftPad32(big.NewInt(32))...)
	out = append(out, leftPad32(big.NewInt(int64(len(values))))...)
	for _, v := range values {
		out = append(out, leftPad32(new(big.Int).SetUint64(v))...)
	}
	return out
}

func leftPad32(v *big.Int) []byte {
	word := uint256.MustFromBig(v).Bytes32()
	return word[:]
}
