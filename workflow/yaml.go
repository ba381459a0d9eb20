package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nimbuslabs/conductor/core"
	"gopkg.in/yaml.v3"
)

// definitionDoc is the on-disk YAML shape for a Workflow. It mirrors
// Workflow/WorkflowStep field-for-field but with yaml tags and plain
// scalar types, since core.DynamicValue and core.AgentInput don't carry
// yaml tags of their own (spec.md's wire format is JSON-first). Grounded
// on the teacher's Config.LoadFromFile (core/config.go): read the whole
// file, clean the path, unmarshal into a dedicated struct, wrap every
// failure with context.
type definitionDoc struct {
	ID           string             `yaml:"id"`
	Name         string             `yaml:"name"`
	Description  string             `yaml:"description,omitempty"`
	InitialInput string             `yaml:"initial_input,omitempty"`
	Options      optionsDoc         `yaml:"options,omitempty"`
	Steps        []workflowStepDoc  `yaml:"steps"`
}

type optionsDoc struct {
	SelfArgumentationCycles int    `yaml:"self_argumentation_cycles,omitempty"`
	EnableBoundary          bool   `yaml:"enable_boundary,omitempty"`
	EnableReview            bool   `yaml:"enable_review,omitempty"`
	MaxParallelFanout       int    `yaml:"max_parallel_fanout,omitempty"`
	DefaultTimeoutSeconds   float64 `yaml:"default_timeout_seconds,omitempty"`
	DefaultRetry            retryPolicyDoc `yaml:"default_retry,omitempty"`
}

type retryPolicyDoc struct {
	MaxRetries          int     `yaml:"max_retries,omitempty"`
	InitialDelaySeconds float64 `yaml:"initial_delay_seconds,omitempty"`
	MaxDelaySeconds     float64 `yaml:"max_delay_seconds,omitempty"`
	Strategy            string  `yaml:"strategy,omitempty"`
}

type conditionDoc struct {
	Kind      string  `yaml:"kind,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
	Substring string  `yaml:"substring,omitempty"`
}

type workflowStepDoc struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name,omitempty"`
	AgentID        string            `yaml:"agent_id"`
	InputOverrides map[string]string `yaml:"input_overrides,omitempty"`
	DependsOn      []string          `yaml:"depends_on,omitempty"`
	Condition      conditionDoc      `yaml:"condition,omitempty"`
	IsRequired     bool              `yaml:"is_required,omitempty"`
	TimeoutSeconds float64           `yaml:"timeout_seconds,omitempty"`
	Retry          *retryPolicyDoc   `yaml:"retry,omitempty"`
}

// LoadDefinition reads a Workflow definition from a YAML file on disk.
func LoadDefinition(path string) (Workflow, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Workflow{}, fmt.Errorf("workflow.LoadDefinition: read %s: %w", cleanPath, err)
	}

	wf, err := ParseDefinition(data)
	if err != nil {
		return Workflow{}, fmt.Errorf("workflow.LoadDefinition: %s: %w", cleanPath, err)
	}
	return wf, nil
}

// ParseDefinition parses a Workflow definition from YAML bytes already in
// memory, for callers that load config from somewhere other than a local
// file (embedded assets, a config map mounted into a container, ...).
func ParseDefinition(data []byte) (Workflow, error) {
	var doc definitionDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Workflow{}, fmt.Errorf("workflow.ParseDefinition: %w", err)
	}

	opts := DefaultOptions()
	if doc.Options.SelfArgumentationCycles > 0 {
		opts.SelfArgumentationCycles = doc.Options.SelfArgumentationCycles
	}
	opts.EnableBoundary = doc.Options.EnableBoundary
	opts.EnableReview = doc.Options.EnableReview
	if doc.Options.MaxParallelFanout > 0 {
		opts.MaxParallelFanout = doc.Options.MaxParallelFanout
	}
	if doc.Options.DefaultTimeoutSeconds > 0 {
		opts.DefaultTimeout = secondsToDuration(doc.Options.DefaultTimeoutSeconds)
	}
	if doc.Options.DefaultRetry.MaxRetries > 0 || doc.Options.DefaultRetry.Strategy != "" {
		opts.DefaultRetry = retryPolicyFromDoc(doc.Options.DefaultRetry, DefaultRetryPolicy())
	}

	steps := make([]WorkflowStep, 0, len(doc.Steps))
	for _, sd := range doc.Steps {
		step := WorkflowStep{
			ID:         sd.ID,
			Name:       sd.Name,
			AgentID:    sd.AgentID,
			DependsOn:  sd.DependsOn,
			IsRequired: sd.IsRequired,
			Condition:  conditionFromDoc(sd.Condition),
		}
		if sd.TimeoutSeconds > 0 {
			step.Timeout = secondsToDuration(sd.TimeoutSeconds)
		}
		if sd.Retry != nil {
			rp := retryPolicyFromDoc(*sd.Retry, opts.DefaultRetry)
			step.Retry = &rp
		}
		if len(sd.InputOverrides) > 0 {
			step.InputOverrides = make(map[string]core.DynamicValue, len(sd.InputOverrides))
			for k, v := range sd.InputOverrides {
				step.InputOverrides[k] = core.NewStringValue(v)
			}
		}
		steps = append(steps, step)
	}

	wf := Workflow{
		ID:           doc.ID,
		Name:         doc.Name,
		Description:  doc.Description,
		Steps:        steps,
		InitialInput: core.NewAgentInput(doc.InitialInput),
		Options:      opts,
	}
	if err := wf.Validate(); err != nil {
		return Workflow{}, err
	}
	return wf, nil
}

func conditionFromDoc(cd conditionDoc) Condition {
	switch ConditionKind(cd.Kind) {
	case ConditionConfidenceAbove:
		return ConfidenceAbove(cd.Threshold)
	case ConditionOutputContains:
		return OutputContains(cd.Substring)
	case ConditionPreviousSuccess:
		return PreviousSuccess()
	case ConditionCustom:
		return Custom()
	default:
		return Always()
	}
}

func retryPolicyFromDoc(rd retryPolicyDoc, fallback RetryPolicy) RetryPolicy {
	policy := fallback
	if rd.MaxRetries > 0 {
		policy.MaxRetries = rd.MaxRetries
	}
	if rd.InitialDelaySeconds > 0 {
		policy.InitialDelay = secondsToDuration(rd.InitialDelaySeconds)
	}
	if rd.MaxDelaySeconds > 0 {
		policy.MaxDelay = secondsToDuration(rd.MaxDelaySeconds)
	}
	if rd.Strategy != "" {
		policy.Strategy = BackoffStrategy(rd.Strategy)
	}
	return policy
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
