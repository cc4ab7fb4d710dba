// Package bip32 derives child extended keys and the small set of
// primitives (fingerprint, compressed pubkey, network params) the
// signing core needs from them.
//
// Generalized from the account-level fixed-purpose derivation in
// wallet/keys.go (BIP84/BIP86 only) to arbitrary-path derivation, since
// the signer must walk whatever path a PSBT's hd_keypaths or the
// PathDeducer's brute force names, not a single fixed account path.
package bip32

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/coldwallet/psbtsign/sigerr"
)

// HardenedOffset is added to an index to request hardened derivation,
// matching the PSBT wire representation of hd_keypaths.
const HardenedOffset = hdkeychain.HardenedKeyStart

// NetworkParams resolves a network name to its chaincfg.Params.
//
// regtest is included beyond the teacher's wallet.NetworkParams because
// the signer's network gate treats a caller-declared regtest as
// compatible with a testnet extended key (see signer.checkNetwork).
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "testnet4":
		return &chaincfg.TestNet4Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, sigerr.InputValidation("unknown network: " + network)
	}
}

// Derive walks successive hdkeychain.Derive calls along path. Each
// element is the literal wire-format index: callers that want a
// hardened child at position i pass i+HardenedOffset, exactly as it
// appears in a PSBT's Bip32Derivation.Bip32Path.
func Derive(xprv *hdkeychain.ExtendedKey, path []uint32) (*hdkeychain.ExtendedKey, error) {
	key := xprv
	for _, idx := range path {
		child, err := key.Derive(idx)
		if err != nil {
			return nil, sigerr.Wrap(sigerr.KindKeyLoader, "derive child key", err)
		}
		key = child
	}
	return key, nil
}

// Fingerprint returns the first four bytes of HASH160 of the
// compressed public key serialization, i.e. the BIP32 key identifier
// used as a PSBT master_key_fingerprint.
func Fingerprint(key *hdkeychain.ExtendedKey) ([4]byte, error) {
	pub, err := key.ECPubKey()
	if err != nil {
		return [4]byte{}, sigerr.Wrap(sigerr.KindKeyLoader, "recover public key", err)
	}
	return fingerprintFromPubKey(pub), nil
}

func fingerprintFromPubKey(pub *btcec.PublicKey) [4]byte {
	h := btcutil.Hash160(pub.SerializeCompressed())
	var fp [4]byte
	copy(fp[:], h[:4])
	return fp
}

// Pubkey returns the compressed secp256k1 public key for key.
func Pubkey(key *hdkeychain.ExtendedKey) (*btcec.PublicKey, error) {
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, sigerr.Wrap(sigerr.KindKeyLoader, "recover public key", err)
	}
	return pub, nil
}

// Neuter strips the private component, returning the extended public
// key string. Used by keyfile to cross-check a stored xpub against its
// paired xprv.
func Neuter(key *hdkeychain.ExtendedKey) (string, error) {
	pub, err := key.Neuter()
	if err != nil {
		return "", sigerr.Wrap(sigerr.KindKeyLoader, "neuter extended key", err)
	}
	return pub.String(), nil
}
