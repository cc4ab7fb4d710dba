// Package signer orchestrates the signing pass: it validates the
// caller's declared network against the extended key, runs PathDeducer,
// then walks every input classifying, deriving, hashing, and signing.
//
// Grounded on path_wallet_psbt.go's pathWalletPSBTSign (the same
// validate -> build prevout fetcher -> per-input loop -> insert
// partial-sig shape), adapted from "try three address-matching
// strategies against a seed-derived wallet" to "match the PSBT's own
// hd_keypaths against a directly supplied xprv", per lnd/signer.go's
// AddPartialSignatureForPrivateKey pattern from the enrichment pass.
package signer

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/hashicorp/go-hclog"

	"github.com/coldwallet/psbtsign/bip32"
	"github.com/coldwallet/psbtsign/pathdeduce"
	"github.com/coldwallet/psbtsign/scriptclass"
	"github.com/coldwallet/psbtsign/sighash"
	"github.com/coldwallet/psbtsign/sigerr"
)

// Re-exported error taxonomy, see sigerr for definitions.
type (
	Kind  = sigerr.Kind
	Error = sigerr.Error
)

const (
	KindGeneric             = sigerr.KindGeneric
	KindInputValidation     = sigerr.KindInputValidation
	KindConsistencyMismatch = sigerr.KindConsistencyMismatch
	KindNetworkMismatch     = sigerr.KindNetworkMismatch
	KindKeyLoader           = sigerr.KindKeyLoader
	KindEncodingFailure     = sigerr.KindEncodingFailure
)

// DefaultTotalDerivations mirrors pathdeduce's default, applied when a
// caller passes 0.
const DefaultTotalDerivations = pathdeduce.DefaultTotalDerivations

// Result reports what the signing pass changed.
type Result struct {
	Signed     bool
	AddedPaths bool
}

// Option configures a Sign call.
type Option func(*options)

type options struct {
	logger hclog.Logger
}

// WithLogger attaches a structured logger. Signing is silent by default,
// and a nil logger keeps the silent default.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Sign mutates pkt in place, inserting a partial signature for every
// input whose hd_keypaths names a key under xprv's fingerprint, and
// backfilling missing hd_keypaths first via pathdeduce. It never
// removes or replaces an existing partial_sigs or hd_keypaths entry.
func Sign(
	pkt *psbt.Packet,
	xprv *hdkeychain.ExtendedKey,
	network string,
	totalDerivations uint32,
	opts ...Option,
) (Result, error) {
	cfg := options{logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger

	if err := checkNetwork(xprv, network); err != nil {
		return Result{}, err
	}

	myFingerprint, err := bip32.Fingerprint(xprv)
	if err != nil {
		return Result{}, err
	}
	myFingerprintU32 := fingerprintToUint32(myFingerprint)

	baseline := cloneInputs(pkt.Inputs)

	addedPaths, err := pathdeduce.FillMissing(pkt, xprv, totalDerivations)
	if err != nil {
		return Result{}, err
	}
	if addedPaths {
		log.Info("deduced missing bip32 derivation paths")
	}

	prevOuts, err := collectPrevOuts(pkt)
	if err != nil {
		return Result{}, err
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := sighash.NewSigHashes(pkt.UnsignedTx, fetcher)

	for i := range pkt.Inputs {
		in := &pkt.Inputs[i]
		prevOut := pkt.UnsignedTx.TxIn[i].PreviousOutPoint

		classified, err := scriptclass.Classify(toClassifierInput(in), prevOut)
		if err != nil {
			return Result{}, err
		}

		hashType := in.SighashType
		if hashType == 0 {
			hashType = txscript.SigHashAll
		}

		for _, deriv := range in.Bip32Derivation {
			if deriv.MasterKeyFingerprint != myFingerprintU32 {
				continue
			}
			if hasPartialSig(in.PartialSigs, deriv.PubKey) {
				continue
			}

			childKey, err := bip32.Derive(xprv, deriv.Bip32Path)
			if err != nil {
				return Result{}, err
			}
			childPub, err := bip32.Pubkey(childKey)
			if err != nil {
				return Result{}, err
			}
			pubBytes := childPub.SerializeCompressed()
			if !bytes.Equal(pubBytes, deriv.PubKey) {
				return Result{}, sigerr.ConsistencyMismatch("derived_pubkey_does_not_match_psbt_entry")
			}

			digest, err := sighash.Compute(
				pkt.UnsignedTx, sigHashes, i,
				classified.ScriptToHash, classified.IsWitness, classified.Amount,
				hashType,
			)
			if err != nil {
				return Result{}, err
			}

			childPriv, err := childKey.ECPrivKey()
			if err != nil {
				return Result{}, sigerr.Wrap(sigerr.KindKeyLoader, "recover private key", err)
			}
			sig := ecdsa.Sign(childPriv, digest)
			sigBytes := append(sig.Serialize(), byte(hashType))

			in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
				PubKey:    pubBytes,
				Signature: sigBytes,
			})
			log.Debug("signed input", "index", i, "fingerprint", myFingerprintU32)
		}
	}

	return Result{Signed: !inputsEqual(baseline, pkt.Inputs), AddedPaths: addedPaths}, nil
}

// cloneInputs snapshots the counts of the two fields a signing pass ever
// appends to (partial_sigs, hd_keypaths), since neither is ever mutated
// or shortened in place.
func cloneInputs(inputs []psbt.PInput) []inputSnapshot {
	snap := make([]inputSnapshot, len(inputs))
	for i, in := range inputs {
		snap[i] = inputSnapshot{
			partialSigs:     len(in.PartialSigs),
			bip32Derivation: len(in.Bip32Derivation),
		}
	}
	return snap
}

type inputSnapshot struct {
	partialSigs     int
	bip32Derivation int
}

func inputsEqual(baseline []inputSnapshot, inputs []psbt.PInput) bool {
	for i, in := range inputs {
		if baseline[i].partialSigs != len(in.PartialSigs) {
			return false
		}
		if baseline[i].bip32Derivation != len(in.Bip32Derivation) {
			return false
		}
	}
	return true
}

func checkNetwork(xprv *hdkeychain.ExtendedKey, network string) error {
	params, err := bip32.NetworkParams(network)
	if err != nil {
		return err
	}
	if xprv.IsForNet(params) {
		return nil
	}
	if network == "regtest" {
		testnetParams, _ := bip32.NetworkParams("testnet")
		if xprv.IsForNet(testnetParams) {
			return nil
		}
	}
	return sigerr.NetworkMismatch("extended key network does not match declared network")
}

func collectPrevOuts(pkt *psbt.Packet) (map[wire.OutPoint]*wire.TxOut, error) {
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(pkt.Inputs))
	for i, in := range pkt.Inputs {
		outPoint := pkt.UnsignedTx.TxIn[i].PreviousOutPoint
		switch {
		case in.WitnessUtxo != nil:
			prevOuts[outPoint] = in.WitnessUtxo
		case in.NonWitnessUtxo != nil:
			if int(outPoint.Index) >= len(in.NonWitnessUtxo.TxOut) {
				return nil, sigerr.InputValidation("prevout index out of range")
			}
			prevOuts[outPoint] = in.NonWitnessUtxo.TxOut[outPoint.Index]
		default:
			return nil, sigerr.InputValidation("both utxos absent")
		}
	}
	return prevOuts, nil
}

func toClassifierInput(in *psbt.PInput) scriptclass.Input {
	return scriptclass.Input{
		NonWitnessUtxo: in.NonWitnessUtxo,
		WitnessUtxo:    in.WitnessUtxo,
		RedeemScript:   in.RedeemScript,
		WitnessScript:  in.WitnessScript,
	}
}

func hasPartialSig(sigs []*psbt.PartialSig, pubKey []byte) bool {
	for _, s := range sigs {
		if bytes.Equal(s.PubKey, pubKey) {
			return true
		}
	}
	return false
}

func fingerprintToUint32(fp [4]byte) uint32 {
	return uint32(fp[0]) | uint32(fp[1])<<8 | uint32(fp[2])<<16 | uint32(fp[3])<<24
}
