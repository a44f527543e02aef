package zkvm

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// ErrMalformedInputStream is returned when the executor cannot split the
// input into frames.
var ErrMalformedInputStream = errors.New("zkvm: malformed input stream")

// InputBuilder assembles the input stream handed to a guest. Each Write adds
// one frame; the guest consumes frames in order with Env.Read. The stream is
// an RLP list of byte strings.
type InputBuilder struct {
	frames [][]byte
}

// NewInputBuilder returns an empty builder.
func NewInputBuilder() *InputBuilder {
	return &InputBuilder{}
}

// Write appends a frame. The bytes are copied.
func (b *InputBuilder) Write(frame []byte) *InputBuilder {
	b.frames = append(b.frames, append([]byte{}, frame...))
	return b
}

// WriteString appends a UTF-8 string frame.
func (b *InputBuilder) WriteString(s string) *InputBuilder {
	return b.Write([]byte(s))
}

// Build encodes the frames.
func (b *InputBuilder) Build() ([]byte, error) {
	frames := b.frames
	if frames == nil {
		frames = [][]byte{}
	}
	enc, err := rlp.EncodeToBytes(frames)
	if err != nil {
		return nil, fmt.Errorf("zkvm: encode input: %w", err)
	}
	return enc, nil
}

// InputDigest is the digest a receipt records for the encoded input stream
// built by InputBuilder. Hosts compare it with Verifier.VerifyInput.
func InputDigest(input []byte) common.Hash {
	return sha256.Sum256(input)
}

// decodeFrames splits an encoded input stream.
func decodeFrames(input []byte) ([][]byte, error) {
	var frames [][]byte
	if err := rlp.DecodeBytes(input, &frames); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInputStream, err)
	}
	return frames, nil
}
