package zkvm

import (
	"errors"
	"testing"
)

func TestComputeImageID(t *testing.T) {
	a := ComputeImageID([]byte("program-a"))
	if a != ComputeImageID([]byte("program-a")) {
		t.Error("image id is not deterministic")
	}
	if a == ComputeImageID([]byte("program-b")) {
		t.Error("different images share an id")
	}
	if a == (ImageID{}) {
		t.Error("image id is zero")
	}
}

func TestReceiptKindString(t *testing.T) {
	for _, kind := range []ReceiptKind{KindComposite, KindCompact} {
		got, err := ParseReceiptKind(kind.String())
		if err != nil || got != kind {
			t.Errorf("ParseReceiptKind(%q) = %v, %v", kind.String(), got, err)
		}
	}
	if got, err := ParseReceiptKind(" Compact "); err != nil || got != KindCompact {
		t.Errorf("case-insensitive parse: %v, %v", got, err)
	}
	if _, err := ParseReceiptKind("groth16"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if s := ReceiptKind(9).String(); s != "kind(9)" {
		t.Errorf("unknown kind string = %q", s)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	image := []byte("prog")
	id, err := reg.Register("prog", image, echoGuest)
	if err != nil {
		t.Fatal(err)
	}
	if id != ComputeImageID(image) {
		t.Error("Register returned wrong id")
	}

	image[0] = 'X'
	prog, err := reg.Lookup(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(prog.Image) != "prog" {
		t.Error("registry did not copy the image")
	}

	if _, err := reg.Register("prog", []byte("prog"), echoGuest); !errors.Is(err, ErrGuestAlreadyRegistered) {
		t.Errorf("duplicate: err = %v", err)
	}
	if _, err := reg.Register("empty", nil, echoGuest); err != ErrGuestEmptyProgram {
		t.Errorf("empty: err = %v", err)
	}
	if _, err := reg.Register("nil", []byte("x"), nil); err != ErrGuestNilEntry {
		t.Errorf("nil entry: err = %v", err)
	}
	if _, err := reg.Lookup(ImageID{1}); err != ErrGuestNotRegistered {
		t.Errorf("lookup: err = %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count = %d", reg.Count())
	}
}
