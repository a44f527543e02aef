package main

import (
	"fmt"
	"io"
	"os"

	"github.com/zkrsa/zkrsa/guest"
	"github.com/zkrsa/zkrsa/log"
	"github.com/zkrsa/zkrsa/zkvm"
)

// runVerify implements "zkrsa verify": it loads a receipt written with
// --out and checks it against the ImageID of the chosen guest and the
// public verifier params, given directly with --params or derived from
// the prover seed.
func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := newCustomFlagSet("zkrsa verify")
	fs.SetOutput(stderr)
	var (
		path   string
		image  string
		seed   []byte
		params zkvm.VerifierParams
	)
	fs.StringVar(&path, "receipt", "", "receipt file written with --out")
	fs.StringVar(&image, "image", "fixed", "guest program: fixed, input")
	fs.ParamsVar(&params, "params", "verifier params printed by the proving run")
	fs.HexVar(&seed, "prover.seed", "32-byte hex seed the receipt was proved with (instead of --params)")
	verbosity := fs.Int("verbosity", 3, "log level 0-5")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	log.SetDefault(log.NewTerminal(stderr, log.LevelFromVerbosity(*verbosity), false))

	if path == "" {
		fmt.Fprintln(stderr, "Error: --receipt is required")
		return 2
	}
	if paramsSet(params) == (seed != nil) {
		fmt.Fprintln(stderr, "Error: exactly one of --params and --prover.seed is required")
		return 2
	}
	var id zkvm.ImageID
	switch image {
	case "fixed":
		id = guest.EncryptID
	case "input":
		id = guest.EncryptInputID
	default:
		fmt.Fprintf(stderr, "Error: unknown image %q\n", image)
		return 2
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read receipt: %v\n", err)
		return 1
	}
	receipt, err := zkvm.UnmarshalReceipt(data)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to decode receipt: %v\n", err)
		return 1
	}
	if seed != nil {
		keys, err := zkvm.NewProverKeys(seed)
		if err != nil {
			fmt.Fprintf(stderr, "Invalid prover seed: %v\n", err)
			return 1
		}
		params = keys.Params()
	}
	if err := receipt.Verify(params, id); err != nil {
		fmt.Fprintf(stderr, "Receipt rejected: %v\n", err)
		return 1
	}
	log.Debug("Receipt verified", "image", id, "kind", receipt.Kind())
	fmt.Fprintf(stdout, "Receipt verified (%s, journal %d bytes, image %s)\n",
		receipt.Kind(), len(receipt.Journal()), id.Hex())
	return 0
}
