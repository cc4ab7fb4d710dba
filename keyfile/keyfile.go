// Package keyfile loads the on-disk private-key record the signing
// core consumes as its key loader collaborator.
//
// Grounded on wallet/keys.go's GetAccountXpub / SLIP-0132 conversion
// helpers for the xpub round-trip, and on the teacher's general
// JSON-over-logical.Storage loading pattern (path_wallets.go), replaced
// here with a plain os.ReadFile since there is no storage backend in
// this domain.
package keyfile

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/coldwallet/psbtsign/bip32"
	"github.com/coldwallet/psbtsign/sigerr"
)

// RequiredFileName is the literal file name the key loader insists on,
// a guard against accidentally pointing the signer at an unrelated
// JSON file.
const RequiredFileName = "PRIVATE.json"

// PrivateMasterKey is the record named in the external-interfaces
// section: an xprv plus enough metadata to sanity-check it.
type PrivateMasterKey struct {
	XPrv        *hdkeychain.ExtendedKey
	XPub        string
	Fingerprint string
	Name        string
}

type fileFormat struct {
	XPrv        string `json:"xprv"`
	XPub        string `json:"xpub"`
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
}

// Load reads and parses path, which must be literally named
// PRIVATE.json. If the record carries an xpub, it is cross-checked
// against the neutered xprv; a mismatch is a defense-in-depth failure
// before any cryptographic work begins.
func Load(path string) (*PrivateMasterKey, error) {
	if filepath.Base(path) != RequiredFileName {
		return nil, sigerr.New(sigerr.KindKeyLoader, "private key file must be named "+RequiredFileName)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sigerr.KeyLoader("read key file", err)
	}

	var ff fileFormat
	if err := json.Unmarshal(raw, &ff); err != nil {
		return nil, sigerr.KeyLoader("parse key file", err)
	}

	xprv, err := hdkeychain.NewKeyFromString(ff.XPrv)
	if err != nil {
		return nil, sigerr.KeyLoader("parse xprv", err)
	}
	if !xprv.IsPrivate() {
		return nil, sigerr.New(sigerr.KindKeyLoader, "key file xprv field is not a private key")
	}

	if ff.XPub != "" {
		derived, err := bip32.Neuter(xprv)
		if err != nil {
			return nil, err
		}
		if derived != ff.XPub {
			return nil, sigerr.New(sigerr.KindKeyLoader, "xpub does not match derived public key")
		}
	}

	return &PrivateMasterKey{
		XPrv:        xprv,
		XPub:        ff.XPub,
		Fingerprint: ff.Fingerprint,
		Name:        ff.Name,
	}, nil
}
