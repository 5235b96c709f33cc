// Package ethereum implements adapters.DAClient by posting state-diff blobs
// to Ethereum as EIP-4844 blob-carrying transactions, grounded on
// go-ethereum's own core/types.BlobTx/BlobTxSidecar and crypto/kzg4844
// public API (the pack carries the kzg4844 and blob-tx packages themselves
// but no calling-application usage site, so this is grounded on those
// packages' exported surface rather than a pack usage example).
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"

	ethereumclient "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// Client publishes blobs to Ethereum via a BlobTx sent to target, signed by
// key. The blob payload itself is fetched from store by key.
type Client struct {
	eth    *ethclient.Client
	store  adapters.ObjectStore
	key    *ecdsa.PrivateKey
	chain  *big.Int
	target common.Address
}

// Config bundles the parameters needed to dial and sign.
type Config struct {
	RPCURL     string
	PrivateKey *ecdsa.PrivateKey
	ChainID    *big.Int
	Target     common.Address
}

// New dials rpc and returns a Client posting blobs signed by cfg.PrivateKey.
func New(ctx context.Context, cfg Config, store adapters.ObjectStore) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, orcherrors.DaError(fmt.Errorf("dial execution client: %w", err))
	}
	return &Client{eth: eth, store: store, key: cfg.PrivateKey, chain: cfg.ChainID, target: cfg.Target}, nil
}

// maxBlobSize is the EIP-4844 blob field-element capacity (4096 field
// elements of 32 bytes each), matching kzg4844.Blob's backing array size.
const maxBlobSize = len(kzg4844.Blob{})

func (c *Client) PublishBlob(ctx context.Context, blobDataKey string) (string, string, error) {
	rc, err := c.store.Get(ctx, blobDataKey)
	if err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("fetch blob data %s: %w", blobDataKey, err))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("read blob data %s: %w", blobDataKey, err))
	}
	if len(data) > maxBlobSize {
		return "", "", orcherrors.DaError(fmt.Errorf("blob data %s is %d bytes, exceeds %d byte blob capacity", blobDataKey, len(data), maxBlobSize))
	}

	var blob kzg4844.Blob
	copy(blob[:], data)

	commitment, err := kzg4844.BlobToCommitment(&blob)
	if err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("compute blob commitment: %w", err))
	}
	proof, err := kzg4844.ComputeBlobProof(&blob, commitment)
	if err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("compute blob proof: %w", err))
	}

	sidecar := &types.BlobTxSidecar{
		Blobs:       []kzg4844.Blob{blob},
		Commitments: []kzg4844.Commitment{commitment},
		Proofs:      []kzg4844.Proof{proof},
	}
	versionedHash := sidecar.BlobHashes()[0]

	nonce, err := c.eth.PendingNonceAt(ctx, crypto.PubkeyToAddress(c.key.PublicKey))
	if err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("fetch nonce: %w", err))
	}
	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("suggest gas tip cap: %w", err))
	}
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("fetch latest header: %w", err))
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))
	blobFeeCap := eip4844BlobFee(header)

	chainID, err := uint256FromBig(c.chain)
	if err != nil {
		return "", "", orcherrors.DaError(err)
	}
	tipCap256, err := uint256FromBig(tipCap)
	if err != nil {
		return "", "", orcherrors.DaError(err)
	}
	feeCap256, err := uint256FromBig(feeCap)
	if err != nil {
		return "", "", orcherrors.DaError(err)
	}
	blobFeeCap256, err := uint256FromBig(blobFeeCap)
	if err != nil {
		return "", "", orcherrors.DaError(err)
	}

	txData := &types.BlobTx{
		ChainID:    chainID,
		Nonce:      nonce,
		GasTipCap:  tipCap256,
		GasFeeCap:  feeCap256,
		Gas:        210000,
		To:         c.target,
		BlobFeeCap: blobFeeCap256,
		BlobHashes: []common.Hash{versionedHash},
		Sidecar:    sidecar,
	}

	signer := types.NewCancunSigner(c.chain)
	signedTx, err := types.SignNewTx(c.key, signer, txData)
	if err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("sign blob tx: %w", err))
	}
	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return "", "", orcherrors.DaError(fmt.Errorf("send blob tx: %w", err))
	}

	return signedTx.Hash().Hex(), versionedHash.Hex(), nil
}

func (c *Client) TxStatus(ctx context.Context, txHash string) (bool, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereumclient.NotFound) {
			return false, nil
		}
		return false, orcherrors.DaError(fmt.Errorf("fetch receipt for %s: %w", txHash, err))
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}

func uint256FromBig(v *big.Int) (*uint256.Int, error) {
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %s overflows uint256", v)
	}
	return u, nil
}

// eip4844BlobFee returns a blob fee cap of 1 plus the header's excess blob
// gas divided by 1e9, or 1 when the header carries no excess blob gas. It
// does not apply the EIP-4844 blob base fee formula.
func eip4844BlobFee(header *types.Header) *big.Int {
	if header.ExcessBlobGas == nil {
		return big.NewInt(1)
	}
	return big.NewInt(1 + int64(*header.ExcessBlobGas)/1e9)
}
