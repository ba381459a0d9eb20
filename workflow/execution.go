package workflow

import (
	"sync"
	"time"

	"github.com/nimbuslabs/conductor/core"
)

// State is an ExecutionContext's lifecycle state, per spec.md §3.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Metrics tracks what actually ran during one Execute call - populated
// incrementally so a failed or cancelled run still reports accurate
// counts (spec.md §7: "metrics always reflect what actually ran").
type Metrics struct {
	TotalSteps             int
	CompletedSteps         int
	FailedSteps            int
	TotalProcessingSeconds float64
	PerStepSeconds         map[string]float64
	RetryCount             int
}

// ExecutionContext is the live record of one running workflow. Grounded
// on spec.md §3 and the teacher's WorkflowExecution
// (orchestration/workflow_engine.go), trimmed to the fields the
// coordinator actually needs once the HTTP/service-discovery bookkeeping
// is removed.
type ExecutionContext struct {
	mu sync.RWMutex

	WorkflowID    string
	StartedAt     time.Time
	state         State
	currentStep   int
	outputs       []core.AgentOutput
	metrics       Metrics
	controlSignal chan struct{} // non-blocking-sent on every state change; wakes a paused Execute loop
}

func newExecutionContext(workflowID string, totalSteps int) *ExecutionContext {
	return &ExecutionContext{
		WorkflowID:    workflowID,
		StartedAt:     time.Now(),
		state:         StatePending,
		metrics:       Metrics{TotalSteps: totalSteps, PerStepSeconds: map[string]float64{}},
		controlSignal: make(chan struct{}, 1),
	}
}

// State returns the current lifecycle state.
func (e *ExecutionContext) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *ExecutionContext) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.notify()
}

// notify wakes a paused Execute loop blocked in waitWhilePaused. The
// channel is buffered by one slot and the send is non-blocking, so a
// notification is never lost waiting for a reader and never piles up
// past the one pending wake-up that's actually needed.
func (e *ExecutionContext) notify() {
	select {
	case e.controlSignal <- struct{}{}:
	default:
	}
}

// CurrentStep returns the index of the step currently (or most recently)
// executing.
func (e *ExecutionContext) CurrentStep() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentStep
}

func (e *ExecutionContext) setCurrentStep(i int) {
	e.mu.Lock()
	e.currentStep = i
	e.mu.Unlock()
}

// Outputs returns a snapshot of the outputs produced so far.
func (e *ExecutionContext) Outputs() []core.AgentOutput {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.AgentOutput, len(e.outputs))
	copy(out, e.outputs)
	return out
}

func (e *ExecutionContext) appendOutput(out core.AgentOutput) {
	e.mu.Lock()
	e.outputs = append(e.outputs, out)
	e.mu.Unlock()
}

// Metrics returns a snapshot of the running metrics.
func (e *ExecutionContext) Metrics() Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := e.metrics
	cp.PerStepSeconds = make(map[string]float64, len(e.metrics.PerStepSeconds))
	for k, v := range e.metrics.PerStepSeconds {
		cp.PerStepSeconds[k] = v
	}
	return cp
}

func (e *ExecutionContext) recordSuccess(stepID string, seconds float64) {
	e.mu.Lock()
	e.metrics.CompletedSteps++
	e.metrics.TotalProcessingSeconds += seconds
	e.metrics.PerStepSeconds[stepID] = seconds
	e.mu.Unlock()
}

func (e *ExecutionContext) recordFailure() {
	e.mu.Lock()
	e.metrics.FailedSteps++
	e.mu.Unlock()
}

func (e *ExecutionContext) recordRetry() {
	e.mu.Lock()
	e.metrics.RetryCount++
	e.mu.Unlock()
}

// WorkflowResult is the terminal summary handed back by Execute.
type WorkflowResult struct {
	WorkflowID             string
	State                  State
	Outputs                []core.AgentOutput
	FinalOutput            string
	Confidence             float64
	TotalProcessingSeconds float64
	Metrics                Metrics
}

// buildResult synthesizes a WorkflowResult from an ExecutionContext's
// final snapshot (spec.md §3's WorkflowResult: last non-empty textual
// output as finalOutput, mean confidence over produced outputs).
func buildResult(workflowID string, state State, outputs []core.AgentOutput, metrics Metrics) WorkflowResult {
	var finalOutput string
	for i := len(outputs) - 1; i >= 0; i-- {
		if outputs[i].Content != "" {
			finalOutput = outputs[i].Content
			break
		}
	}

	var confidenceSum float64
	for _, o := range outputs {
		confidenceSum += o.Confidence
	}
	confidence := 0.0
	if len(outputs) > 0 {
		confidence = confidenceSum / float64(len(outputs))
	}

	return WorkflowResult{
		WorkflowID:             workflowID,
		State:                  state,
		Outputs:                outputs,
		FinalOutput:            finalOutput,
		Confidence:             confidence,
		TotalProcessingSeconds: metrics.TotalProcessingSeconds,
		Metrics:                metrics,
	}
}
