package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/zkrsa/zkrsa/zkvm"
)

// flagSet wraps flag.FlagSet to add the uint64, hex, receipt kind and
// verifier params flag types.
type flagSet struct {
	*flag.FlagSet
}

// newCustomFlagSet creates a flagSet with ContinueOnError behavior.
func newCustomFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &flagSet{FlagSet: fs}
}

// Uint64Var defines a uint64 flag. Go's standard flag package lacks uint64
// support, so we use a custom Value implementation.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

// HexVar defines a 0x-prefixed hex byte string flag.
func (fs *flagSet) HexVar(p *[]byte, name string, usage string) {
	fs.FlagSet.Var(&hexValue{p: p}, name, usage)
}

// KindVar defines a receipt kind flag.
func (fs *flagSet) KindVar(p *zkvm.ReceiptKind, name string, value zkvm.ReceiptKind, usage string) {
	fs.FlagSet.Var(&kindValue{p: p}, name, usage)
	*p = value
}

// ParamsVar defines a verifier params flag in VerifierParams.String form.
func (fs *flagSet) ParamsVar(p *zkvm.VerifierParams, name string, usage string) {
	fs.FlagSet.Var(&paramsValue{p: p}, name, usage)
}

// uint64Value implements flag.Value for uint64 flags.
type uint64Value struct {
	p *uint64
}

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}

type hexValue struct {
	p *[]byte
}

func (v *hexValue) String() string {
	if v.p == nil || *v.p == nil {
		return ""
	}
	return hexutil.Encode(*v.p)
}

func (v *hexValue) Set(s string) error {
	b, err := hexutil.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid hex value %q: %v", s, err)
	}
	*v.p = b
	return nil
}

type kindValue struct {
	p *zkvm.ReceiptKind
}

func (v *kindValue) String() string {
	if v.p == nil {
		return ""
	}
	return v.p.String()
}

func (v *kindValue) Set(s string) error {
	k, err := zkvm.ParseReceiptKind(s)
	if err != nil {
		return err
	}
	*v.p = k
	return nil
}

type paramsValue struct {
	p *zkvm.VerifierParams
}

func (v *paramsValue) String() string {
	if v.p == nil || (v.p.BLSPubkey == nil && v.p.SignerAddress == (common.Address{})) {
		return ""
	}
	return v.p.String()
}

func (v *paramsValue) Set(s string) error {
	params, err := zkvm.ParseVerifierParams(s)
	if err != nil {
		return err
	}
	*v.p = params
	return nil
}
