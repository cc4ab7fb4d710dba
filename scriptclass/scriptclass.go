// Package scriptclass classifies a PSBT input's spending path — legacy,
// P2SH-wrapped, or SegWit v0 — and produces the script that must be
// hashed to compute its sighash.
//
// Grounded on the per-strategy branching of path_wallet_psbt.go's
// trySignSingleSig / trySignMultiSig (P2WPKH vs P2WSH recognition) and
// signInput / signMultiSigInput (which script gets passed to the
// sighash calculator), generalized into the explicit decision table of
// the signing core rather than the teacher's "try strategy N, fall
// through" control flow.
package scriptclass

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/coldwallet/psbtsign/sigerr"
)

// Result is the classifier's output: the script to hash, whether the
// spend is a SegWit v0 path, and (for witness paths) the amount of the
// spent output, which BIP143 folds into the sighash preimage.
type Result struct {
	ScriptToHash []byte
	IsWitness    bool
	Amount       int64
}

// Input bundles the fields of a PSBT input record the classifier reads.
// It mirrors psbt.PInput's relevant subset without importing the psbt
// package here, keeping scriptclass a leaf package.
type Input struct {
	NonWitnessUtxo *wire.MsgTx
	WitnessUtxo    *wire.TxOut
	RedeemScript   []byte
	WitnessScript  []byte
}

// Classify implements the decision table: first matching row wins.
// prevOut is the unsigned transaction's previous_output for this input.
func Classify(in Input, prevOut wire.OutPoint) (Result, error) {
	switch {
	case in.NonWitnessUtxo != nil:
		return classifyNonWitness(in, prevOut)
	case in.WitnessUtxo != nil:
		return classifyWitness(in)
	default:
		return Result{}, sigerr.InputValidation("both utxos absent")
	}
}

func classifyNonWitness(in Input, prevOut wire.OutPoint) (Result, error) {
	if in.NonWitnessUtxo.TxHash() != prevOut.Hash {
		return Result{}, sigerr.ConsistencyMismatch("prevout_txid_mismatch")
	}
	if int(prevOut.Index) >= len(in.NonWitnessUtxo.TxOut) {
		return Result{}, sigerr.InputValidation("prevout index out of range")
	}
	prevTxOut := in.NonWitnessUtxo.TxOut[prevOut.Index]

	if len(in.RedeemScript) > 0 {
		if !bytes.Equal(prevTxOut.PkScript, p2shScript(in.RedeemScript)) {
			return Result{}, sigerr.ConsistencyMismatch("redeem_script_does_not_hash_to_scriptpubkey")
		}
		return Result{ScriptToHash: in.RedeemScript, IsWitness: false}, nil
	}
	return Result{ScriptToHash: prevTxOut.PkScript, IsWitness: false}, nil
}

func classifyWitness(in Input) (Result, error) {
	utxo := in.WitnessUtxo
	amount := utxo.Value

	switch {
	case isP2WPKH(utxo.PkScript) && len(in.RedeemScript) == 0:
		script, err := synthesizeP2PKH(utxo.PkScript)
		if err != nil {
			return Result{}, err
		}
		return Result{ScriptToHash: script, IsWitness: true, Amount: amount}, nil

	case len(in.RedeemScript) > 0 && isP2WPKH(in.RedeemScript):
		if !bytes.Equal(utxo.PkScript, p2shScript(in.RedeemScript)) {
			return Result{}, sigerr.ConsistencyMismatch("redeem_script_does_not_hash_to_scriptpubkey")
		}
		script, err := synthesizeP2PKH(in.RedeemScript)
		if err != nil {
			return Result{}, err
		}
		return Result{ScriptToHash: script, IsWitness: true, Amount: amount}, nil

	case len(in.RedeemScript) > 0:
		if !bytes.Equal(utxo.PkScript, p2shScript(in.RedeemScript)) {
			return Result{}, sigerr.ConsistencyMismatch("redeem_script_does_not_hash_to_scriptpubkey")
		}
		if len(in.WitnessScript) == 0 {
			return Result{}, sigerr.InputValidation("witness_script is none")
		}
		if !bytes.Equal(in.RedeemScript, p2wshScript(in.WitnessScript)) {
			return Result{}, sigerr.ConsistencyMismatch("witness_script_does_not_hash_to_script")
		}
		return Result{ScriptToHash: in.WitnessScript, IsWitness: true, Amount: amount}, nil

	case isP2WSH(utxo.PkScript):
		if len(in.WitnessScript) == 0 {
			return Result{}, sigerr.InputValidation("witness_script is none")
		}
		if !bytes.Equal(utxo.PkScript, p2wshScript(in.WitnessScript)) {
			return Result{}, sigerr.ConsistencyMismatch("witness_script_does_not_hash_to_script")
		}
		return Result{ScriptToHash: in.WitnessScript, IsWitness: true, Amount: amount}, nil

	default:
		return Result{}, sigerr.InputValidation("witness_script is none")
	}
}

func isP2WPKH(script []byte) bool {
	return len(script) == 22 && script[0] == txscript.OP_0 && script[1] == txscript.OP_DATA_20
}

func isP2WSH(script []byte) bool {
	return len(script) == 34 && script[0] == txscript.OP_0 && script[1] == txscript.OP_DATA_32
}

func p2shScript(redeemScript []byte) []byte {
	h := btcutil.Hash160(redeemScript)
	b, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(h).
		AddOp(txscript.OP_EQUAL).
		Script()
	return b
}

func p2wshScript(witnessScript []byte) []byte {
	h := sha256.Sum256(witnessScript)
	b, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()
	return b
}

// synthesizeP2PKH rebuilds the legacy P2PKH script a P2WPKH pkScript
// implicitly commits to: bytes [2:22] of the witness script are the
// 20-byte pubkey hash, per §3's invariant.
func synthesizeP2PKH(p2wpkh []byte) ([]byte, error) {
	if !isP2WPKH(p2wpkh) {
		return nil, sigerr.ConsistencyMismatch("synthesized_script_is_not_p2pkh")
	}
	hash := p2wpkh[2:22]
	b, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, sigerr.EncodingFailure("build synthesized p2pkh script", err)
	}
	if len(b) != 25 {
		return nil, sigerr.ConsistencyMismatch("synthesized_script_is_not_p2pkh")
	}
	return b, nil
}
