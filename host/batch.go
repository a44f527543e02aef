package host

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zkrsa/zkrsa/crypto"
	"github.com/zkrsa/zkrsa/zkvm"
)

var ErrNoJobs = errors.New("host: empty batch")

// Job is one plaintext to run through its own pipeline. A nil Plaintext
// selects the fixed-plaintext guest.
type Job struct {
	Plaintext []byte
}

// RunBatch runs one pipeline per job with at most workers in flight. Every
// job gets a freshly generated key pair; no key material is shared between
// jobs. The first failure cancels the remaining jobs and is returned
// wrapped with its job index. Results are in job order. A non-nil cfg.Rand
// is shared by all jobs behind a lock.
func RunBatch(ctx context.Context, cfg Config, prover *zkvm.Prover, jobs []Job, workers int) ([]*Result, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	if workers <= 0 {
		workers = 1
	}

	if cfg.Rand != nil {
		cfg.Rand = crypto.NewLockedReader(cfg.Rand)
	}
	pipelines := make([]*Pipeline, len(jobs))
	for i, job := range jobs {
		jc := cfg
		jc.Plaintext = job.Plaintext
		p, err := NewPipeline(jc, prover)
		if err != nil {
			return nil, fmt.Errorf("host: job %d: %w", i, err)
		}
		pipelines[i] = p
	}

	results := make([]*Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range pipelines {
		g.Go(func() error {
			res, err := p.Run(gctx)
			if err != nil {
				return fmt.Errorf("host: job %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
