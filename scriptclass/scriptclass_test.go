package scriptclass

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func dummyHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func redeemScriptFixture() []byte {
	s, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_TRUE).Script()
	return s
}

func witnessScriptFixture() []byte {
	s, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	return s
}

func TestClassifyLegacyWithRedeemScript(t *testing.T) {
	redeem := redeemScriptFixture()
	prevOut := wire.OutPoint{Hash: dummyHash(1), Index: 0}
	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxOut(wire.NewTxOut(1000, p2shScript(redeem)))
	// force txid to match prevOut by construction: use the actual hash
	prevOut.Hash = prevTx.TxHash()

	in := Input{NonWitnessUtxo: prevTx, RedeemScript: redeem}
	res, err := Classify(in, prevOut)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.IsWitness {
		t.Fatalf("expected legacy classification")
	}
	if !bytes.Equal(res.ScriptToHash, redeem) {
		t.Fatalf("script_to_hash = %x, want redeem script", res.ScriptToHash)
	}
}

func TestClassifyLegacyWithoutRedeemScript(t *testing.T) {
	pkScript, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_TRUE).Script()
	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxOut(wire.NewTxOut(1000, pkScript))
	prevOut := wire.OutPoint{Hash: prevTx.TxHash(), Index: 0}

	in := Input{NonWitnessUtxo: prevTx}
	res, err := Classify(in, prevOut)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.IsWitness {
		t.Fatalf("expected legacy classification")
	}
	if !bytes.Equal(res.ScriptToHash, pkScript) {
		t.Fatalf("script_to_hash should equal prevout scriptPubKey")
	}
}

func TestClassifyLegacyPrevoutMismatch(t *testing.T) {
	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	prevOut := wire.OutPoint{Hash: dummyHash(9), Index: 0} // deliberately wrong hash

	in := Input{NonWitnessUtxo: prevTx}
	_, err := Classify(in, prevOut)
	if err == nil {
		t.Fatalf("expected prevout mismatch error")
	}
}

func p2wpkhFixture() ([]byte, []byte) {
	hash := bytes.Repeat([]byte{0xAB}, 20)
	script, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(hash).Script()
	return script, hash
}

func TestClassifyNativeP2WPKH(t *testing.T) {
	script, hash := p2wpkhFixture()
	in := Input{WitnessUtxo: wire.NewTxOut(5000, script)}
	res, err := Classify(in, wire.OutPoint{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.IsWitness {
		t.Fatalf("expected witness classification")
	}
	if res.Amount != 5000 {
		t.Fatalf("amount = %d, want 5000", res.Amount)
	}
	wantHashPart := res.ScriptToHash[3:23]
	if !bytes.Equal(wantHashPart, hash) {
		t.Fatalf("synthesized p2pkh hash mismatch")
	}
}

func TestClassifyNativeP2WSH(t *testing.T) {
	ws := witnessScriptFixture()
	h := sha256.Sum256(ws)
	script, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(h[:]).Script()

	in := Input{WitnessUtxo: wire.NewTxOut(7000, script), WitnessScript: ws}
	res, err := Classify(in, wire.OutPoint{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.IsWitness || !bytes.Equal(res.ScriptToHash, ws) {
		t.Fatalf("expected witness_script to be the hashed script")
	}
}

func TestClassifyNativeP2WSHMissingWitnessScript(t *testing.T) {
	ws := witnessScriptFixture()
	h := sha256.Sum256(ws)
	script, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(h[:]).Script()

	in := Input{WitnessUtxo: wire.NewTxOut(7000, script)}
	_, err := Classify(in, wire.OutPoint{})
	if err == nil {
		t.Fatalf("expected witness_script is none error")
	}
}

func TestClassifyWrappedP2WSH(t *testing.T) {
	ws := witnessScriptFixture()
	redeem := p2wshScript(ws)
	script := p2shScript(redeem)

	in := Input{
		WitnessUtxo:   wire.NewTxOut(3000, script),
		RedeemScript:  redeem,
		WitnessScript: ws,
	}
	res, err := Classify(in, wire.OutPoint{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.IsWitness || !bytes.Equal(res.ScriptToHash, ws) {
		t.Fatalf("expected witness_script to be the hashed script for wrapped p2wsh")
	}
}

func TestClassifyWrappedP2WSHMismatch(t *testing.T) {
	ws := witnessScriptFixture()
	redeem := p2wshScript(ws)
	wrongScript := []byte{0x00, 0x01, 0x02} // does not hash to p2sh(redeem)

	in := Input{
		WitnessUtxo:   wire.NewTxOut(3000, wrongScript),
		RedeemScript:  redeem,
		WitnessScript: ws,
	}
	_, err := Classify(in, wire.OutPoint{})
	if err == nil {
		t.Fatalf("expected witness_utxo script mismatch error")
	}
}

func TestClassifyWrappedP2WPKH(t *testing.T) {
	redeem, hash := p2wpkhFixture()
	script := p2shScript(redeem)

	in := Input{
		WitnessUtxo:  wire.NewTxOut(4000, script),
		RedeemScript: redeem,
	}
	res, err := Classify(in, wire.OutPoint{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.IsWitness {
		t.Fatalf("expected witness classification")
	}
	if res.Amount != 4000 {
		t.Fatalf("amount = %d, want 4000", res.Amount)
	}
	gotHashPart := res.ScriptToHash[3:23]
	if !bytes.Equal(gotHashPart, hash) {
		t.Fatalf("synthesized p2pkh hash mismatch for wrapped p2wpkh")
	}
}

func TestClassifyWrappedP2WPKHMismatch(t *testing.T) {
	redeem, _ := p2wpkhFixture()
	wrongScript := []byte{0x00, 0x01, 0x02} // does not hash to p2sh(redeem)

	in := Input{
		WitnessUtxo:  wire.NewTxOut(4000, wrongScript),
		RedeemScript: redeem,
	}
	_, err := Classify(in, wire.OutPoint{})
	if err == nil {
		t.Fatalf("expected witness_utxo script mismatch error for wrapped p2wpkh")
	}
}

func TestClassifyBothUtxosAbsent(t *testing.T) {
	_, err := Classify(Input{}, wire.OutPoint{})
	if err == nil {
		t.Fatalf("expected both utxos absent error")
	}
}

func TestSynthesizeP2PKHRejectsNonP2WPKH(t *testing.T) {
	_, err := synthesizeP2PKH([]byte{0x51})
	if err == nil {
		t.Fatalf("expected synthesized_script_is_not_p2pkh error")
	}
}

func TestP2SHAndP2WSHHelpers(t *testing.T) {
	redeem := redeemScriptFixture()
	got := p2shScript(redeem)
	want := append([]byte{txscript.OP_HASH160, 20}, btcutil.Hash160(redeem)...)
	want = append(want, txscript.OP_EQUAL)
	if !bytes.Equal(got, want) {
		t.Fatalf("p2shScript mismatch")
	}

	ws := witnessScriptFixture()
	h := sha256.Sum256(ws)
	gotWSH := p2wshScript(ws)
	wantWSH := append([]byte{txscript.OP_0, 32}, h[:]...)
	if !bytes.Equal(gotWSH, wantWSH) {
		t.Fatalf("p2wshScript mismatch")
	}
}
