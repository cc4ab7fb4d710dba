// Package pathdeduce backfills missing BIP32 derivation metadata on a
// PSBT by brute-forcing a small derivation window and matching the
// resulting public keys against pubkey pushes found in witness
// scripts.
//
// Grounded on path_wallet_psbt.go's trySignMultiSig/extractPubKeysFromScript
// (scanning a witness script for 33-byte compressed-pubkey pushes and
// brute-forcing candidate indices), generalized from "receiving vs
// change, up to NextAddressIndex+20" to the spec's fixed i∈{0,1},
// j∈[0,total] window.
package pathdeduce

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/coldwallet/psbtsign/bip32"
)

// DefaultTotalDerivations bounds the brute-force window when a caller
// passes 0.
const DefaultTotalDerivations = 1000

type candidate struct {
	fingerprint [4]byte
	path        []uint32
}

// FillMissing scans pkt for inputs/outputs missing hd_keypaths and
// inserts entries it can deduce from witness scripts. Returns true if
// any entry was added. Idempotent: a PSBT whose keypaths are already
// complete is left untouched and FillMissing returns false.
func FillMissing(pkt *psbt.Packet, xprv *hdkeychain.ExtendedKey, totalDerivations uint32) (bool, error) {
	if totalDerivations == 0 {
		totalDerivations = DefaultTotalDerivations
	}

	if !needsDeduction(pkt) {
		return false, nil
	}

	candidates, err := buildCandidates(xprv, totalDerivations)
	if err != nil {
		return false, err
	}

	addedAny := false
	for i := range pkt.Inputs {
		if fillInput(&pkt.Inputs[i], candidates) {
			addedAny = true
		}
	}
	for i := range pkt.Outputs {
		if fillOutput(&pkt.Outputs[i], candidates) {
			addedAny = true
		}
	}
	return addedAny, nil
}

func needsDeduction(pkt *psbt.Packet) bool {
	for _, in := range pkt.Inputs {
		if len(in.Bip32Derivation) == 0 {
			return true
		}
	}
	for _, out := range pkt.Outputs {
		if len(out.Bip32Derivation) == 0 {
			return true
		}
	}
	return false
}

// buildCandidates derives, for i in {0,1} and j in [0,total], the child
// reached by deriving m/i once and then, from that node, child j, and
// records it under the two-level path []uint32{i, j} (m/i/j). The
// branch key m/i is derived once per i and reused for every j; walking
// the recorded path with bip32.Derive from the master yields the same
// key.
func buildCandidates(xprv *hdkeychain.ExtendedKey, total uint32) (map[string]candidate, error) {
	fp, err := bip32.Fingerprint(xprv)
	if err != nil {
		return nil, err
	}

	out := make(map[string]candidate, 2*(total+1))
	for i := uint32(0); i < 2; i++ {
		branch, err := bip32.Derive(xprv, []uint32{i})
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j <= total; j++ {
			child, err := bip32.Derive(branch, []uint32{j})
			if err != nil {
				return nil, err
			}
			pub, err := bip32.Pubkey(child)
			if err != nil {
				return nil, err
			}
			key := string(pub.SerializeCompressed())
			out[key] = candidate{
				fingerprint: fp,
				path:        []uint32{i, j},
			}
		}
	}
	return out, nil
}

func fillInput(in *psbt.PInput, candidates map[string]candidate) bool {
	if len(in.Bip32Derivation) > 0 || len(in.WitnessScript) == 0 {
		return false
	}
	return applyMatches(extractPubkeys(in.WitnessScript), candidates, &in.Bip32Derivation)
}

func fillOutput(out *psbt.POutput, candidates map[string]candidate) bool {
	if len(out.Bip32Derivation) > 0 || len(out.WitnessScript) == 0 {
		return false
	}
	return applyMatches(extractPubkeys(out.WitnessScript), candidates, &out.Bip32Derivation)
}

func applyMatches(pubkeys [][]byte, candidates map[string]candidate, dst *[]*psbt.Bip32Derivation) bool {
	added := false
	for _, pk := range pubkeys {
		cand, ok := candidates[string(pk)]
		if !ok {
			continue
		}
		*dst = append(*dst, &psbt.Bip32Derivation{
			PubKey:               pk,
			MasterKeyFingerprint: fingerprintToUint32(cand.fingerprint),
			Bip32Path:            cand.path,
		})
		added = true
	}
	return added
}

func fingerprintToUint32(fp [4]byte) uint32 {
	return uint32(fp[0]) | uint32(fp[1])<<8 | uint32(fp[2])<<16 | uint32(fp[3])<<24
}

// extractPubkeys scans script for direct 33-byte data pushes beginning
// with 0x02 or 0x03 (compressed secp256k1 points), the same manual scan
// the teacher's extractPubKeysFromScript performs rather than a full
// script disassembly.
func extractPubkeys(script []byte) [][]byte {
	var out [][]byte
	for i := 0; i < len(script); {
		op := script[i]
		if op == 0x21 && i+1+33 <= len(script) { // OP_DATA_33
			push := script[i+1 : i+1+33]
			if push[0] == 0x02 || push[0] == 0x03 {
				out = append(out, append([]byte(nil), push...))
			}
			i += 1 + 33
			continue
		}
		i++
	}
	return out
}
