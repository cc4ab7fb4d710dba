// Package walletfile loads the wallet-descriptor JSON consumed by the
// pretty-printer, never by the signing core itself.
//
// Unlike keyfile, this is deliberately thin: the spec names the
// wallet-descriptor loader as a collaborator the core does not call
// into, so there is no parsed-descriptor tree here (contrast with the
// full BIP380 parser retrieved alongside this spec) — only enough
// structure for a caller to display what wallet a PSBT claims to
// belong to.
package walletfile

import (
	"encoding/json"
	"os"

	"github.com/coldwallet/psbtsign/sigerr"
)

// Wallet is the on-disk wallet descriptor record.
type Wallet struct {
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
	Network    string `json:"network"`
}

// Load reads and parses a wallet descriptor file.
func Load(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sigerr.EncodingFailure("read wallet file", err)
	}
	var w Wallet
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, sigerr.EncodingFailure("parse wallet file", err)
	}
	return &w, nil
}

// String renders a one-line summary for the pretty-printer.
func (w *Wallet) String() string {
	if w == nil {
		return "<no wallet>"
	}
	return w.Name + " (" + w.Network + "): " + w.Descriptor
}
