package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zkrsa/zkrsa/zkvm"
)

const testSeed = "0x4242424242424242424242424242424242424242424242424242424242424242"

func TestParseFlags_Defaults(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfg, exit, code := parseFlags(nil, &stdout, &stderr)
	if exit {
		t.Fatalf("unexpected exit with code %d", code)
	}
	if cfg.Host.KeyBits != 2048 {
		t.Errorf("KeyBits = %d, want 2048", cfg.Host.KeyBits)
	}
	if cfg.Host.ReceiptKind != zkvm.KindComposite {
		t.Errorf("ReceiptKind = %v", cfg.Host.ReceiptKind)
	}
	if cfg.Host.Plaintext != nil {
		t.Error("Plaintext should be nil by default")
	}
	if cfg.MaxCycles != zkvm.DefaultMaxCycles {
		t.Errorf("MaxCycles = %d", cfg.MaxCycles)
	}
	if cfg.Seed != nil {
		t.Error("Seed should be unset by default")
	}
	if cfg.Verbosity != 3 || cfg.Jobs != 1 || cfg.Metrics {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseFlags_AllFlags(t *testing.T) {
	args := []string{
		"-bits", "1024",
		"-plaintext", "attack at dawn",
		"-receipt", "compact",
		"-timeout", "30s",
		"-vm.maxcycles", "5000000",
		"-prover.seed", testSeed,
		"-jobs", "3",
		"-workers", "2",
		"-out", "/tmp/r.bin",
		"-verbosity", "4",
		"-metrics",
	}
	var stdout, stderr bytes.Buffer
	cfg, exit, _ := parseFlags(args, &stdout, &stderr)
	if exit {
		t.Fatalf("unexpected exit: %s", stderr.String())
	}
	if cfg.Host.KeyBits != 1024 {
		t.Errorf("KeyBits = %d", cfg.Host.KeyBits)
	}
	if string(cfg.Host.Plaintext) != "attack at dawn" {
		t.Errorf("Plaintext = %q", cfg.Host.Plaintext)
	}
	if cfg.Host.ReceiptKind != zkvm.KindCompact {
		t.Errorf("ReceiptKind = %v", cfg.Host.ReceiptKind)
	}
	if cfg.Host.ProveTimeout != 30*time.Second {
		t.Errorf("ProveTimeout = %v", cfg.Host.ProveTimeout)
	}
	if cfg.MaxCycles != 5_000_000 {
		t.Errorf("MaxCycles = %d", cfg.MaxCycles)
	}
	if len(cfg.Seed) != 32 || cfg.Seed[0] != 0x42 {
		t.Errorf("Seed = %x", cfg.Seed)
	}
	if cfg.Jobs != 3 || cfg.Workers != 2 || cfg.Out != "/tmp/r.bin" || cfg.Verbosity != 4 || !cfg.Metrics {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestParseFlags_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"-receipt", "groth16"},
		{"-prover.seed", "zz"},
		{"-vm.maxcycles", "-1"},
		{"-params", "0x1234"},
		{"-nosuchflag"},
	} {
		var stdout, stderr bytes.Buffer
		_, exit, code := parseFlags(args, &stdout, &stderr)
		if !exit || code != 2 {
			t.Errorf("%v: exit = %v, code = %d", args, exit, code)
		}
	}
}

func TestParseFlags_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	_, exit, code := parseFlags([]string{"-version"}, &stdout, &stderr)
	if !exit || code != 0 {
		t.Fatalf("exit = %v, code = %d", exit, code)
	}
	if !strings.Contains(stdout.String(), version) {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestRun_ProveAndVerify(t *testing.T) {
	out := filepath.Join(t.TempDir(), "receipt.bin")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-bits", "1024", "-prover.seed", testSeed, "-out", out, "-verbosity", "1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run exited %d: %s", code, stderr.String())
	}
	for _, want := range []string{"Public key:", "Params:      0x", "Ciphertext:  0x", "Plaintext:   hello world", "Seal:", "Proof:", "Receipt verified (composite)"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("output missing %q:\n%s", want, stdout.String())
		}
	}

	stdout.Reset()
	code = run([]string{"verify", "-receipt", out, "-prover.seed", testSeed}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("verify exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Receipt verified") {
		t.Errorf("verify output = %q", stdout.String())
	}

	otherSeed := "0x" + strings.Repeat("01", 32)
	if code := run([]string{"verify", "-receipt", out, "-prover.seed", otherSeed}, &stdout, &stderr); code != 1 {
		t.Errorf("verify with wrong params exited %d, want 1", code)
	}
	if code := run([]string{"verify", "-receipt", out, "-prover.seed", testSeed, "-image", "input"}, &stdout, &stderr); code != 1 {
		t.Errorf("verify against wrong image exited %d, want 1", code)
	}
}

func TestRun_CompactBatch(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-bits", "1024", "-receipt", "compact", "-jobs", "2", "-workers", "2", "-plaintext", "hi", "-verbosity", "1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run exited %d: %s", code, stderr.String())
	}
	if got := strings.Count(stdout.String(), `plaintext="hi"`); got != 2 {
		t.Errorf("expected 2 job lines, got %d:\n%s", got, stdout.String())
	}
	if !strings.Contains(stdout.String(), "kind=compact") {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-bits", "256"}, &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if code := run([]string{"verify"}, &stdout, &stderr); code != 2 {
		t.Errorf("verify without flags exited %d, want 2", code)
	}
}

func TestRun_Metrics(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-bits", "1024", "-metrics", "-verbosity", "0"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "zkrsa_host_pipeline_runs") {
		t.Errorf("metrics snapshot missing:\n%s", stderr.String())
	}
}

// outputField returns the value printed after label in run's output.
func outputField(t *testing.T, out, label string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, label); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("output has no %q line:\n%s", label, out)
	return ""
}

func TestRun_VerifyWithPublicParams(t *testing.T) {
	out := filepath.Join(t.TempDir(), "receipt.bin")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-bits", "1024", "-receipt", "compact", "-out", out, "-verbosity", "1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run exited %d: %s", code, stderr.String())
	}
	params := outputField(t, stdout.String(), "Params:")

	stdout.Reset()
	if code := run([]string{"verify", "-receipt", out, "-params", params}, &stdout, &stderr); code != 0 {
		t.Fatalf("verify exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Receipt verified (compact") {
		t.Errorf("verify output = %q", stdout.String())
	}

	keys, err := zkvm.NewProverKeys(bytes.Repeat([]byte{0x01}, 32))
	if err != nil {
		t.Fatal(err)
	}
	if code := run([]string{"verify", "-receipt", out, "-params", keys.Params().String()}, &stdout, &stderr); code != 1 {
		t.Errorf("verify with foreign params exited %d, want 1", code)
	}
	if code := run([]string{"verify", "-receipt", out, "-params", params, "-prover.seed", testSeed}, &stdout, &stderr); code != 2 {
		t.Errorf("verify with both params and seed exited %d, want 2", code)
	}
	if code := run([]string{"verify", "-receipt", out, "-params", "0x,0x12"}, &stdout, &stderr); code != 2 {
		t.Errorf("verify with malformed params exited %d, want 2", code)
	}
}

func TestRun_ForeignParamsRejected(t *testing.T) {
	keys, err := zkvm.NewProverKeys(bytes.Repeat([]byte{0x01}, 32))
	if err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	code := run([]string{"-bits", "1024", "-prover.seed", testSeed, "-params", keys.Params().String(), "-verbosity", "1"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("run exited %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "verification failed") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if strings.Contains(stdout.String(), "Plaintext:") {
		t.Error("plaintext released despite failed verification")
	}
}
