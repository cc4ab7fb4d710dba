// Package sighash computes the 32-byte digest a signer signs over, for
// both legacy and BIP143 (SegWit v0) inputs.
//
// Rather than hand-rolling BIP143 (as the original Rust implementation
// didn't either — it leaned on bitcoin::util::bip143::SighashComponents),
// this delegates to txscript's own sighash machinery, the same one the
// teacher uses in wallet/transaction.go's BuildTransaction.
package sighash

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/coldwallet/psbtsign/sigerr"
)

// Compute returns the sighash digest for input idx of tx.
//
// For witness inputs, sigHashes must have been built with a
// PrevOutFetcher covering every input's prevout (BIP143 folds in
// hashPrevouts/hashSequence/hashOutputs over the whole transaction, not
// just the input being signed).
func Compute(
	tx *wire.MsgTx,
	sigHashes *txscript.TxSigHashes,
	idx int,
	scriptToHash []byte,
	isWitness bool,
	amount int64,
	hashType txscript.SigHashType,
) ([]byte, error) {
	if len(scriptToHash) == 0 {
		return nil, sigerr.InputValidation("sighash empty")
	}

	if isWitness {
		digest, err := txscript.CalcWitnessSigHash(scriptToHash, sigHashes, hashType, tx, idx, amount)
		if err != nil {
			return nil, sigerr.Wrap(sigerr.KindEncodingFailure, "compute witness sighash", err)
		}
		return digest, nil
	}

	digest, err := txscript.CalcSignatureHash(scriptToHash, hashType, tx, idx)
	if err != nil {
		return nil, sigerr.Wrap(sigerr.KindEncodingFailure, "compute legacy sighash", err)
	}
	return digest, nil
}

// NewSigHashes builds the BIP143 midstate cache for tx given a fetcher
// covering every input's previous output.
func NewSigHashes(tx *wire.MsgTx, fetcher txscript.PrevOutputFetcher) *txscript.TxSigHashes {
	return txscript.NewTxSigHashes(tx, fetcher)
}
