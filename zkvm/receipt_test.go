package zkvm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

func TestReceiptEncodingRoundTrip(t *testing.T) {
	id := ComputeImageID(echoImage)
	for _, kind := range []ReceiptKind{KindComposite, KindCompact} {
		p := newTestProver(t, 1, kind)
		r := proveEcho(t, p, "round-trip")

		enc, err := r.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		dec, err := UnmarshalReceipt(enc)
		if err != nil {
			t.Fatalf("%v: UnmarshalReceipt: %v", kind, err)
		}
		if !bytes.Equal(dec.Journal(), r.Journal()) || dec.Kind() != kind {
			t.Fatalf("%v: decoded receipt differs", kind)
		}
		if err := p.Verifier().Verify(dec, id); err != nil {
			t.Fatalf("%v: decoded receipt does not verify: %v", kind, err)
		}
	}
}

func TestUnmarshalReceiptErrors(t *testing.T) {
	if _, err := UnmarshalReceipt([]byte{0x01, 0x02}); !errors.Is(err, ErrMalformedReceipt) {
		t.Errorf("garbage: err = %v", err)
	}
	enc, err := rlp.EncodeToBytes(receiptRLP{Version: 99})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalReceipt(enc); !errors.Is(err, ErrReceiptVersion) {
		t.Errorf("version: err = %v", err)
	}
}

func TestReceiptImmutable(t *testing.T) {
	id := ComputeImageID(echoImage)
	p := newTestProver(t, 1, KindComposite)
	r := proveEcho(t, p, "fixed")

	j := r.Journal()
	j[0] ^= 0xff
	inner := r.Inner()
	inner.seal[0] ^= 0xff
	seal := inner.Seal()
	seal[1] ^= 0xff

	if string(r.Journal()) != "fixed" {
		t.Fatal("journal changed through accessor")
	}
	if err := p.Verifier().Verify(r, id); err != nil {
		t.Fatalf("receipt changed through accessors: %v", err)
	}
}

func TestInnerReceiptMarshal(t *testing.T) {
	r := proveEcho(t, newTestProver(t, 1, KindComposite), "x")
	inner := r.Inner()
	enc, err := inner.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var dec innerRLP
	if err := rlp.DecodeBytes(enc, &dec); err != nil {
		t.Fatal(err)
	}
	if dec.Kind != uint8(KindComposite) || !bytes.Equal(dec.Seal, inner.Seal()) {
		t.Fatal("inner receipt encoding lost fields")
	}
}
