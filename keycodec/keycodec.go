// Package keycodec converts RSA public keys to and from the transport string
// sent from host to guest: "<modulus_hex>,<exponent_hex>". The encoding is
// canonical lowercase hexadecimal without prefix or padding.
package keycodec

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/zkrsa/zkrsa/crypto"
)

// Separator splits the modulus and exponent fields.
const Separator = ","

// ErrMalformedInput is wrapped by every encode and decode failure.
var ErrMalformedInput = errors.New("keycodec: malformed input")

// Encode returns the transport encoding of pub. The same key always yields
// the same string.
func Encode(pub *crypto.RSAPublicKey) (string, error) {
	if pub == nil || pub.N == nil || pub.E == nil {
		return "", fmt.Errorf("%w: nil key component", ErrMalformedInput)
	}
	if pub.N.Sign() <= 0 || pub.E.Sign() <= 0 {
		return "", fmt.Errorf("%w: non-positive key component", ErrMalformedInput)
	}
	return pub.N.Text(16) + Separator + pub.E.Text(16), nil
}

// Decode parses a transport encoding back into a public key. Surrounding
// whitespace is ignored; anything else that is not exactly two non-empty
// hex fields separated by one comma is rejected. Hex digits are accepted in
// either case. The returned key is built without validation.
func Decode(s string) (*crypto.RSAPublicKey, error) {
	fields := strings.Split(strings.TrimSpace(s), Separator)
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedInput, len(fields))
	}
	n, err := parseHex(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: modulus: %v", ErrMalformedInput, err)
	}
	e, err := parseHex(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: exponent: %v", ErrMalformedInput, err)
	}
	return crypto.NewRSAPublicKeyUnchecked(n, e), nil
}

// parseHex parses a bare hex field. big.Int.SetString alone would also
// accept signs, "0x" prefixes and underscores, so the digits are checked
// first.
func parseHex(field string) (*big.Int, error) {
	if field == "" {
		return nil, errors.New("empty field")
	}
	for i := 0; i < len(field); i++ {
		if !isHexDigit(field[i]) {
			return nil, fmt.Errorf("invalid hex digit %q at offset %d", field[i], i)
		}
	}
	v, ok := new(big.Int).SetString(field, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex %q", field)
	}
	return v, nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
