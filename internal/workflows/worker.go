package workflows

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// ClientOptions selects the Temporal frontend.
type ClientOptions struct {
	HostPort  string
	Namespace string
}

// Dial connects to Temporal.
func Dial(opts ClientOptions) (client.Client, error) {
	c, err := client.Dial(client.Options{HostPort: opts.HostPort, Namespace: opts.Namespace})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return c, nil
}

// Registrar is the part of worker.Worker used for registration.
type Registrar interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivity(a any)
}

// Register adds the batch workflow and acts to r.
func Register(r Registrar, acts *Activities) {
	r.RegisterWorkflowWithOptions(BatchSolveWorkflow, workflow.RegisterOptions{Name: "BatchSolveWorkflow"})
	r.RegisterActivity(acts)
}

// NewWorker creates a worker on taskQueue with the batch workflow and
// activities registered.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	Register(w, acts)
	return w
}

// StartBatch starts a BatchSolveWorkflow and returns its run.
func StartBatch(ctx context.Context, c client.Client, taskQueue string, in BatchSolveInput) (client.WorkflowRun, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "batch-solve-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}, BatchSolveWorkflow, in)
	if err != nil {
		return nil, fmt.Errorf("starting batch solve: %w", err)
	}
	return run, nil
}
