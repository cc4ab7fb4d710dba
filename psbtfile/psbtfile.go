// Package psbtfile loads and saves the JSON envelope wrapping a
// base64-encoded PSBT, and names output files per the signed_by
// fingerprint-suffix convention described in the external-interfaces
// section this package implements.
package psbtfile

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/coldwallet/psbtsign/sigerr"
)

// Document is the on-disk JSON wrapper around a PSBT.
type Document struct {
	Name      string `json:"name"`
	PSBT      string `json:"psbt"`
	ChangePos int    `json:"change_pos,omitempty"`
	Fee       int64  `json:"fee,omitempty"`
}

// Load reads path, JSON-decodes the envelope, and parses the embedded
// base64 PSBT.
func Load(path string) (*psbt.Packet, *Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, sigerr.EncodingFailure("read psbt file", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, sigerr.EncodingFailure("parse psbt envelope", err)
	}

	pkt, err := psbt.NewFromRawBytes(strings.NewReader(doc.PSBT), true)
	if err != nil {
		return nil, nil, sigerr.EncodingFailure("decode psbt", err)
	}
	return pkt, &doc, nil
}

// Save serializes pkt back into doc's envelope and writes it under a
// sibling directory named "<dir base>-<fp1>-<fp2>...", one fingerprint
// per entry in signedBy, matching the on-disk convention of §6.
func Save(dir string, doc *Document, pkt *psbt.Packet, signedBy []string) (string, error) {
	var buf bytes.Buffer
	if err := pkt.Serialize(&buf); err != nil {
		return "", sigerr.EncodingFailure("serialize psbt", err)
	}
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())

	out := *doc
	out.PSBT = b64

	encoded, err := json.Marshal(out)
	if err != nil {
		return "", sigerr.EncodingFailure("encode psbt envelope", err)
	}

	outDir := dir
	if len(signedBy) > 0 {
		outDir = dir + "-" + strings.Join(signedBy, "-")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", sigerr.EncodingFailure("create output directory", err)
	}

	outPath := filepath.Join(outDir, fmt.Sprintf("%s.signed.json", doc.Name))
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return "", sigerr.EncodingFailure("write signed psbt", err)
	}
	return outPath, nil
}
