package metrics

// Pre-defined metrics for the prover, the verifier and the host pipeline.
// All metrics live in DefaultRegistry.

var (
	// ---- Prover metrics ----

	// ProveCount counts guest executions submitted for proving.
	ProveCount = DefaultRegistry.Counter("zkvm.prove.count")
	// ProveFailures counts executions that produced no receipt.
	ProveFailures = DefaultRegistry.Counter("zkvm.prove.failures")
	// ProveTime records execution plus sealing time in milliseconds.
	ProveTime = DefaultRegistry.Histogram("zkvm.prove_ms")
	// ProveCycles records cycles consumed per successful execution.
	ProveCycles = DefaultRegistry.Histogram("zkvm.prove.cycles")

	// ---- Verifier metrics ----

	// VerifyCount counts receipt verifications.
	VerifyCount = DefaultRegistry.Counter("zkvm.verify.count")
	// VerifyFailures counts rejected receipts.
	VerifyFailures = DefaultRegistry.Counter("zkvm.verify.failures")

	// ---- Host pipeline metrics ----

	// PipelineRuns counts started pipeline runs.
	PipelineRuns = DefaultRegistry.Counter("host.pipeline.runs")
	// PipelineAborts counts runs that ended in the aborted state.
	PipelineAborts = DefaultRegistry.Counter("host.pipeline.aborts")
	// PipelineActive tracks runs in flight.
	PipelineActive = DefaultRegistry.Gauge("host.pipeline.active")
	// PipelineTime records end-to-end run time in milliseconds.
	PipelineTime = DefaultRegistry.Histogram("host.pipeline_ms")
)
