package applier

import (
	"context"

	"autoapply/internal/classify"
	"autoapply/internal/domain/job"
	"autoapply/internal/profile"
)

// Outcome is the uniform result of one submission attempt. Exactly one of
// the terminal interpretations holds: Success, Skipped, Ambiguous, or a
// classified failure in Category.
type Outcome struct {
	Success bool
	Method  job.Method

	// Category and Detail describe a failure. Category is zero on success.
	Category classify.Category
	Detail   string

	// Unsupported signals that this applier cannot drive the job to
	// completion but a fallback strategy might. The router consumes it.
	Unsupported bool

	// Skipped means the job was not driven to completion by any applier.
	Skipped bool

	// Attempted means at least one applier touched the network for this job.
	// The manager's inter-job throttle keys on it: a skip decided after a
	// real fetch still needs a delay before the next job, a skip decided
	// from the record alone does not.
	Attempted bool

	// Ambiguous means the submit happened but no positive confirmation was
	// observed. The manager downgrades this to a manual check, never success.
	Ambiguous bool

	// Confirmation is the positive signal observed on success.
	Confirmation string

	// Screenshot is the evidence file captured by the browser path.
	Screenshot string
}

// Applier attempts one submission method against a job. Implementations are
// used polymorphically through this contract only; adding a job source means
// adding an Applier, not changing the router.
type Applier interface {
	Method() job.Method
	Attempt(ctx context.Context, rec job.Record, form profile.FormData) Outcome
}

func failure(m job.Method, cat classify.Category, detail string) Outcome {
	return Outcome{Method: m, Category: cat, Detail: detail}
}

func unsupported(m job.Method, cat classify.Category, detail string) Outcome {
	return Outcome{Method: m, Category: cat, Detail: detail, Unsupported: true}
}
