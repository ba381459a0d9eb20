package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimbuslabs/conductor/adk"
	"github.com/nimbuslabs/conductor/core"
)

// reviewer is the narrow surface the coordinator's post-run review pass
// needs from the Review specialization (adk.ReviewAgent), kept as an
// unexported interface so this package doesn't have to depend on adk's
// full LLMAgent surface for one method.
type reviewer interface {
	ReviewOutputs(ctx context.Context, outputs []core.AgentOutput) (core.AgentOutput, error)
}

// Coordinator runs Workflows to completion: it schedules each step's
// agent, threads accumulated outputs forward, enforces condition/retry/
// timeout policy, and emits lifecycle events. Grounded on the teacher's
// WorkflowEngine (orchestration/workflow_engine.go) - same
// register-then-ExecuteWorkflow shape, same per-step
// timeout-wraps-retry-loop - adapted from service discovery + HTTP calls
// to direct core.Agent invocation.
type Coordinator struct {
	mu     sync.RWMutex
	agents map[string]core.Agent

	boundary     core.Agent
	contextAgent core.Agent
	review       reviewer

	logger    core.Logger
	telemetry core.Telemetry
	clock     core.Clock

	events *EventBus

	contextsMu sync.RWMutex
	contexts   map[string]*ExecutionContext
}

// CoordinatorOption configures a Coordinator at construction, following
// the teacher's functional-options style.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger attaches a logger for advisory/diagnostic lines.
func WithCoordinatorLogger(logger core.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// WithCoordinatorTelemetry attaches tracing/metrics around step execution.
func WithCoordinatorTelemetry(t core.Telemetry) CoordinatorOption {
	return func(c *Coordinator) { c.telemetry = t }
}

// WithCoordinatorClock overrides the time source used for timeouts and
// retry backoff waits, for deterministic tests.
func WithCoordinatorClock(clock core.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

// WithBoundaryAgent attaches the advisory safety-check agent run before
// the first step when Workflow.Options.EnableBoundary is set.
func WithBoundaryAgent(agent core.Agent) CoordinatorOption {
	return func(c *Coordinator) { c.boundary = agent }
}

// WithContextAgent attaches the advisory context-summary agent run before
// the first step, unconditionally, when present.
func WithContextAgent(agent core.Agent) CoordinatorOption {
	return func(c *Coordinator) { c.contextAgent = agent }
}

// WithReviewAgent attaches the post-run quality-review agent run after the
// last step when Workflow.Options.EnableReview is set.
func WithReviewAgent(agent *adk.ReviewAgent) CoordinatorOption {
	return func(c *Coordinator) { c.review = agent }
}

// NewCoordinator builds a Coordinator with no agents registered.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		agents:    map[string]core.Agent{},
		logger:    core.NoOpLogger{},
		telemetry: core.NoOpTelemetry{},
		clock:     core.DefaultClock,
		events:    NewEventBus(),
		contexts:  map[string]*ExecutionContext{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterAgent registers an agent by id; a duplicate id overwrites the
// previous registration (spec.md §4.5).
func (c *Coordinator) RegisterAgent(agent core.Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents[agent.ID()] = agent
}

func (c *Coordinator) agent(id string) (core.Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[id]
	return a, ok
}

// Subscribe returns a channel receiving future lifecycle Events, in
// emission order; events emitted while its buffer is full are dropped.
func (c *Coordinator) Subscribe() <-chan Event {
	return c.events.Subscribe()
}

func (c *Coordinator) storeContext(id string, ec *ExecutionContext) {
	c.contextsMu.Lock()
	c.contexts[id] = ec
	c.contextsMu.Unlock()
}

func (c *Coordinator) getContext(id string) (*ExecutionContext, bool) {
	c.contextsMu.RLock()
	defer c.contextsMu.RUnlock()
	ec, ok := c.contexts[id]
	return ec, ok
}

// Status returns the live ExecutionContext for a workflow id, if one has
// been started.
func (c *Coordinator) Status(workflowID string) (*ExecutionContext, bool) {
	return c.getContext(workflowID)
}

// Pause requests that a running workflow stop starting new steps once the
// current one finishes. A no-op if the workflow isn't currently running.
func (c *Coordinator) Pause(workflowID string) error {
	ec, ok := c.getContext(workflowID)
	if !ok {
		return fmt.Errorf("workflow.Coordinator.Pause: unknown workflow %q", workflowID)
	}
	if ec.State() == StateRunning {
		ec.setState(StatePaused)
	}
	return nil
}

// Resume un-pauses a paused workflow. A no-op if it isn't paused.
func (c *Coordinator) Resume(workflowID string) error {
	ec, ok := c.getContext(workflowID)
	if !ok {
		return fmt.Errorf("workflow.Coordinator.Resume: unknown workflow %q", workflowID)
	}
	if ec.State() == StatePaused {
		ec.setState(StateRunning)
	}
	return nil
}

// Cancel requests that a workflow stop starting new steps and finish as
// cancelled. A no-op if the workflow already reached a terminal state.
func (c *Coordinator) Cancel(workflowID string) error {
	ec, ok := c.getContext(workflowID)
	if !ok {
		return fmt.Errorf("workflow.Coordinator.Cancel: unknown workflow %q", workflowID)
	}
	switch ec.State() {
	case StateCompleted, StateFailed, StateCancelled:
		return nil
	}
	ec.setState(StateCancelled)
	return nil
}

// waitWhilePaused blocks the Execute loop between steps while the
// workflow is paused, waking as soon as Resume/Cancel flips the state via
// ExecutionContext.notify (with a bounded poll as a backstop against a
// missed wake-up). Pause/resume/cancel are cooperative at step boundaries
// only (spec.md §5): no step already in flight is interrupted by this.
func (c *Coordinator) waitWhilePaused(ctx context.Context, ec *ExecutionContext) State {
	for ec.State() == StatePaused {
		select {
		case <-ctx.Done():
			return StateCancelled
		case <-ec.controlSignal:
		case <-time.After(50 * time.Millisecond):
		}
	}
	return ec.State()
}

// Execute runs wf to completion: spec.md §4.5's ten-step algorithm.
func (c *Coordinator) Execute(ctx context.Context, wf Workflow) (WorkflowResult, error) {
	if err := wf.Validate(); err != nil {
		return WorkflowResult{}, fmt.Errorf("workflow.Coordinator.Execute: %w", err)
	}

	execCtx := newExecutionContext(wf.ID, len(wf.Steps))
	c.storeContext(wf.ID, execCtx)

	ctx, rootSpan := c.telemetry.StartSpan(ctx, "workflow.execute")
	rootSpan.SetAttribute("workflow_id", wf.ID)
	defer rootSpan.End()

	c.events.Emit(Event{Type: EventWorkflowStarted, WorkflowID: wf.ID, At: time.Now()})

	input := wf.InitialInput
	if input.ID == "" {
		input = core.NewAgentInput(input.Content)
	}

	if wf.Options.EnableBoundary && c.boundary != nil {
		out, err := c.boundary.Process(ctx, input)
		if err != nil {
			execCtx.setState(StateFailed)
			wrapped := core.NewValidationFailedError("workflow.Coordinator.Execute", fmt.Sprintf("boundary agent failed: %v", err))
			rootSpan.RecordError(wrapped)
			c.events.Emit(Event{Type: EventWorkflowFailed, WorkflowID: wf.ID, Err: wrapped, At: time.Now()})
			return buildResult(wf.ID, StateFailed, execCtx.Outputs(), execCtx.Metrics()), wrapped
		}
		c.logger.Info("boundary check advisory result", map[string]interface{}{
			"workflow_id": wf.ID, "confidence": out.Confidence,
		})
	}

	if c.contextAgent != nil {
		if out, err := c.contextAgent.Process(ctx, input); err != nil {
			c.logger.Warn("context agent failed (advisory, ignored)", map[string]interface{}{
				"workflow_id": wf.ID, "error": err.Error(),
			})
		} else {
			c.logger.Debug("context agent advisory result", map[string]interface{}{
				"workflow_id": wf.ID, "content": out.Content,
			})
		}
	}

	execCtx.setState(StateRunning)

	for i, step := range wf.Steps {
		state := execCtx.State()
		if state == StatePaused {
			state = c.waitWhilePaused(ctx, execCtx)
		}
		if state == StateCancelled {
			break
		}

		execCtx.setCurrentStep(i)

		if !step.Condition.evaluate(execCtx.Outputs()) {
			continue
		}

		c.events.Emit(Event{Type: EventStepStarted, WorkflowID: wf.ID, StepID: step.ID, At: time.Now()})

		agent, ok := c.agent(step.AgentID)
		if !ok {
			err := core.NewAgentNotFoundError("workflow.Coordinator.Execute", step.AgentID)
			execCtx.setState(StateFailed)
			rootSpan.RecordError(err)
			c.events.Emit(Event{Type: EventWorkflowFailed, WorkflowID: wf.ID, StepID: step.ID, Err: err, At: time.Now()})
			return buildResult(wf.ID, StateFailed, execCtx.Outputs(), execCtx.Metrics()), err
		}

		stepInput := input
		if len(step.InputOverrides) > 0 {
			stepInput = stepInput.WithMergedContext(step.InputOverrides)
		}

		stepCtx, stepSpan := c.telemetry.StartSpan(ctx, "workflow.step")
		stepSpan.SetAttribute("step_id", step.ID)
		stepSpan.SetAttribute("agent_id", step.AgentID)

		if !agent.CanHandle(stepCtx, stepInput) {
			stepSpan.End()
			err := core.NewInvalidInputError("workflow.Coordinator.Execute",
				fmt.Sprintf("agent %q cannot handle step %q input", step.AgentID, step.ID))
			if werr := c.failStep(wf, execCtx, step, err); werr != nil {
				rootSpan.RecordError(werr)
				return buildResult(wf.ID, StateFailed, execCtx.Outputs(), execCtx.Metrics()), werr
			}
			continue
		}

		timeout := step.Timeout
		if timeout <= 0 {
			timeout = wf.Options.DefaultTimeout
		}
		retry := wf.Options.DefaultRetry
		if step.Retry != nil {
			retry = *step.Retry
		}

		out, err := c.runStep(stepCtx, execCtx, agent, stepInput, timeout, retry)
		if err != nil {
			stepSpan.RecordError(err)
			stepSpan.End()
			if werr := c.failStep(wf, execCtx, step, err); werr != nil {
				rootSpan.RecordError(werr)
				return buildResult(wf.ID, StateFailed, execCtx.Outputs(), execCtx.Metrics()), werr
			}
			continue
		}

		stepSpan.SetAttribute("confidence", out.Confidence)
		stepSpan.End()
		c.telemetry.RecordMetric("workflow_step_duration_seconds", out.ProcessingSeconds, map[string]string{
			"step_id": step.ID,
		})

		execCtx.appendOutput(out)
		execCtx.recordSuccess(step.ID, out.ProcessingSeconds)

		input = input.
			WithAppendedOutputs(out).
			WithContext("last_agent_id", core.NewStringValue(out.AgentID)).
			WithContext("last_confidence", core.NewFloatValue(out.Confidence))
		for k, v := range out.StructuredData {
			input = input.WithContext("output_"+k, v)
		}

		c.events.Emit(Event{Type: EventStepCompleted, WorkflowID: wf.ID, StepID: step.ID, Confidence: out.Confidence, At: time.Now()})
	}

	if execCtx.State() == StateCancelled {
		c.events.Emit(Event{Type: EventWorkflowCancelled, WorkflowID: wf.ID, At: time.Now()})
		return buildResult(wf.ID, StateCancelled, execCtx.Outputs(), execCtx.Metrics()), nil
	}

	outputs := execCtx.Outputs()
	if wf.Options.EnableReview && c.review != nil && len(outputs) > 0 {
		if reviewOut, err := c.review.ReviewOutputs(ctx, outputs); err != nil {
			c.logger.Warn("review agent failed (advisory, ignored)", map[string]interface{}{
				"workflow_id": wf.ID, "error": err.Error(),
			})
		} else {
			c.logger.Info("review result", map[string]interface{}{
				"workflow_id": wf.ID, "confidence": reviewOut.Confidence,
			})
		}
	}

	execCtx.setState(StateCompleted)
	c.events.Emit(Event{Type: EventWorkflowCompleted, WorkflowID: wf.ID, At: time.Now()})

	return buildResult(wf.ID, StateCompleted, outputs, execCtx.Metrics()), nil
}

// failStep records a step failure and, if the step is required, promotes
// it to a workflow-ending error (spec.md §4.5.f / §7). It returns nil when
// the step was non-required (logged, iteration continues).
func (c *Coordinator) failStep(wf Workflow, execCtx *ExecutionContext, step WorkflowStep, cause error) error {
	execCtx.recordFailure()
	wrapped := &core.FrameworkError{
		Op:      "workflow.Coordinator.Execute",
		Kind:    "step-failed",
		ID:      step.ID,
		Message: fmt.Sprintf("step %q failed", step.ID),
		Err:     cause,
	}
	c.events.Emit(Event{Type: EventStepFailed, WorkflowID: wf.ID, StepID: step.ID, Err: wrapped, At: time.Now()})

	if !step.IsRequired {
		c.logger.Warn("non-required step failed, continuing", map[string]interface{}{
			"workflow_id": wf.ID, "step_id": step.ID, "error": cause.Error(),
		})
		return nil
	}

	execCtx.setState(StateFailed)
	c.events.Emit(Event{Type: EventWorkflowFailed, WorkflowID: wf.ID, StepID: step.ID, Err: wrapped, At: time.Now()})
	return wrapped
}

// runStep executes agent.Process under a timeout, retrying per retry
// until it succeeds or the attempt budget is exhausted (spec.md §4.5.d).
func (c *Coordinator) runStep(ctx context.Context, execCtx *ExecutionContext, agent core.Agent, input core.AgentInput, timeout time.Duration, retry RetryPolicy) (core.AgentOutput, error) {
	attempts := retry.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := c.callWithTimeout(ctx, agent, input, timeout)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt < attempts {
			execCtx.recordRetry()
			select {
			case <-c.clock.After(retry.Delay(attempt)):
			case <-ctx.Done():
				return core.AgentOutput{}, core.NewCancelledError("workflow.Coordinator.Execute")
			}
		}
	}
	return core.AgentOutput{}, core.NewMaxRetriesExceededError("workflow.Coordinator.Execute", attempts, lastErr)
}

// callWithTimeout races agent.Process against timeout, first-to-finish
// (spec.md §5). The losing side's goroutine is abandoned rather than
// awaited - this module has no transport handle to cancel underneath it.
func (c *Coordinator) callWithTimeout(ctx context.Context, agent core.Agent, input core.AgentInput, timeout time.Duration) (core.AgentOutput, error) {
	if timeout <= 0 {
		return agent.Process(ctx, input)
	}

	type result struct {
		out core.AgentOutput
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		out, err := agent.Process(ctx, input)
		resultCh <- result{out: out, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.out, r.err
	case <-c.clock.After(timeout):
		return core.AgentOutput{}, core.NewTimeoutError("workflow.Coordinator.Execute", timeout.Seconds())
	case <-ctx.Done():
		return core.AgentOutput{}, core.NewCancelledError("workflow.Coordinator.Execute")
	}
}
