// Command zkrsa runs the proof-carrying RSA encryption protocol: it
// generates a key pair, has the guest encrypt a plaintext under the public
// key inside the zkvm, decrypts the committed ciphertext and verifies the
// receipt.
//
// Usage:
//
//	zkrsa [flags]
//	zkrsa verify --receipt FILE --params PARAMS [--image fixed|input]
//
// Flags:
//
//	--bits          RSA modulus size (default: 2048)
//	--plaintext     Plaintext for the input guest (default: fixed "hello world")
//	--receipt       Receipt kind: composite, compact (default: composite)
//	--timeout       Proving timeout (default: 5m)
//	--vm.maxcycles  Guest cycle limit (default: 16777216)
//	--prover.seed   32-byte hex seed for the prover keys (default: random)
//	--params        Verifier params "<bls pubkey>,<address>" to check the
//	                receipt against (default: the prover's own)
//	--jobs          Independent runs, each with its own key pair (default: 1)
//	--workers       Runs in flight (default: 1)
//	--out           Write the binary receipt to this file
//	--verbosity     Log level 0-5 (default: 3)
//	--metrics       Print a metrics snapshot on exit
//	--version       Print version and exit
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/zkrsa/zkrsa/guest"
	"github.com/zkrsa/zkrsa/host"
	"github.com/zkrsa/zkrsa/log"
	"github.com/zkrsa/zkrsa/metrics"
	"github.com/zkrsa/zkrsa/zkvm"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// config is the resolved command-line configuration.
type config struct {
	Host      host.Config
	Plaintext string
	MaxCycles uint64
	Seed      []byte
	Jobs      int
	Workers   int
	Out       string
	Verbosity int
	Metrics   bool
}

func defaultConfig() config {
	return config{
		Host:      host.DefaultConfig(),
		MaxCycles: zkvm.DefaultMaxCycles,
		Jobs:      1,
		Workers:   1,
		Verbosity: 3,
	}
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "verify" {
		return runVerify(args[1:], stdout, stderr)
	}

	cfg, exit, code := parseFlags(args, stdout, stderr)
	if exit {
		return code
	}
	log.SetDefault(log.NewTerminal(stderr, log.LevelFromVerbosity(cfg.Verbosity), false))
	if cfg.Metrics {
		defer metrics.DefaultRegistry.WriteText(stderr, "zkrsa")
	}

	if cfg.Jobs < 1 {
		fmt.Fprintf(stderr, "Invalid configuration: jobs must be positive\n")
		return 1
	}

	prover, err := newProver(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create prover: %v\n", err)
		return 1
	}
	if !paramsSet(cfg.Host.VerifierParams) {
		cfg.Host.VerifierParams = prover.Params()
	}
	if err := cfg.Host.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Jobs > 1 {
		return runBatch(ctx, cfg, prover, stdout, stderr)
	}

	p, err := host.NewPipeline(cfg.Host, prover)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	res, err := p.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Run failed: %v\n", err)
		return 1
	}
	if err := printResult(stdout, res, cfg.Host.VerifierParams); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	if cfg.Out != "" {
		if err := writeReceipt(cfg.Out, res.Receipt); err != nil {
			fmt.Fprintf(stderr, "Failed to write receipt: %v\n", err)
			return 1
		}
		log.Info("Receipt written", "path", cfg.Out)
	}
	return 0
}

// parseFlags parses CLI arguments into a config. Returns the config, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string, stdout, stderr io.Writer) (config, bool, int) {
	cfg := defaultConfig()
	fs := newCustomFlagSet("zkrsa")
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.Host.KeyBits, "bits", cfg.Host.KeyBits, "RSA modulus size in bits")
	fs.StringVar(&cfg.Plaintext, "plaintext", "", "plaintext for the input guest (empty: fixed \"hello world\")")
	fs.KindVar(&cfg.Host.ReceiptKind, "receipt", cfg.Host.ReceiptKind, "receipt kind: composite, compact")
	fs.DurationVar(&cfg.Host.ProveTimeout, "timeout", cfg.Host.ProveTimeout, "proving timeout")
	fs.Uint64Var(&cfg.MaxCycles, "vm.maxcycles", cfg.MaxCycles, "guest cycle limit")
	fs.HexVar(&cfg.Seed, "prover.seed", "32-byte hex seed for the prover keys (default: random)")
	fs.ParamsVar(&cfg.Host.VerifierParams, "params", "verifier params to check the receipt against (default: the prover's own)")
	fs.IntVar(&cfg.Jobs, "jobs", cfg.Jobs, "independent runs, each with its own key pair")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "runs in flight")
	fs.StringVar(&cfg.Out, "out", "", "write the binary receipt to this file")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5")
	fs.BoolVar(&cfg.Metrics, "metrics", false, "print a metrics snapshot on exit")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return cfg, true, 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "zkrsa %s (commit %s)\n", version, commit)
		return cfg, true, 0
	}
	if cfg.Plaintext != "" {
		cfg.Host.Plaintext = []byte(cfg.Plaintext)
	}
	return cfg, false, 0
}

func paramsSet(p zkvm.VerifierParams) bool {
	return len(p.BLSPubkey) > 0 || p.SignerAddress != (common.Address{})
}

func newProver(cfg config) (*zkvm.Prover, error) {
	var (
		keys *zkvm.ProverKeys
		err  error
	)
	if cfg.Seed != nil {
		keys, err = zkvm.NewProverKeys(cfg.Seed)
	} else {
		keys, err = zkvm.GenerateProverKeys(rand.Reader)
	}
	if err != nil {
		return nil, err
	}
	exec := zkvm.DefaultExecutorConfig()
	exec.MaxCycles = cfg.MaxCycles
	return zkvm.NewProver(guest.NewRegistry(), keys, exec, zkvm.DefaultProverOpts())
}

// printResult prints the run the way an operator inspects it: the key sent
// to the guest, the committed ciphertext, the decrypted plaintext and the
// receipt parts. Params are printed so a third party can run "zkrsa verify"
// without the prover seed.
func printResult(w io.Writer, res *host.Result, params zkvm.VerifierParams) error {
	inner := res.Receipt.Inner()
	proof, err := inner.MarshalBinary()
	if err != nil {
		return err
	}
	seal := inner.Seal()
	if res.Receipt.Kind() == zkvm.KindCompact {
		if seal, err = zkvm.EncodeSeal(res.Receipt); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "Public key:  %s\n", res.EncodedKey)
	fmt.Fprintf(w, "Image ID:    %s\n", res.ImageID.Hex())
	fmt.Fprintf(w, "Params:      %s\n", params)
	fmt.Fprintf(w, "Ciphertext:  %s\n", hexutil.Encode(res.Ciphertext))
	fmt.Fprintf(w, "Plaintext:   %s\n", res.Plaintext)
	fmt.Fprintf(w, "Seal:        %s\n", hexutil.Encode(seal))
	fmt.Fprintf(w, "Journal:     %s\n", hexutil.Encode(res.Receipt.Journal()))
	fmt.Fprintf(w, "Proof:       %s\n", hexutil.Encode(proof))
	fmt.Fprintf(w, "Receipt verified (%s)\n", res.Receipt.Kind())
	return nil
}

func runBatch(ctx context.Context, cfg config, prover *zkvm.Prover, stdout, stderr io.Writer) int {
	jobs := make([]host.Job, cfg.Jobs)
	for i := range jobs {
		jobs[i].Plaintext = cfg.Host.Plaintext
	}
	results, err := host.RunBatch(ctx, cfg.Host, prover, jobs, cfg.Workers)
	if err != nil {
		fmt.Fprintf(stderr, "Batch failed: %v\n", err)
		return 1
	}
	for i, res := range results {
		fmt.Fprintf(stdout, "job %d: plaintext=%q journal=%d bytes kind=%s\n",
			i, res.Plaintext, len(res.Ciphertext), res.Receipt.Kind())
	}
	return 0
}

func writeReceipt(path string, r *zkvm.Receipt) error {
	enc, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	return os.WriteFile(path, enc, 0o644)
}
