// Package flow implements the consultation conversation core: the static
// step graph, the session store, and the engine that dispatches each turn.
package flow

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/playcat/catconsult/internal/models"
)

//go:embed data/consultation_flow.json
var defaultFlowData []byte

// Flow is the static consultation step graph. It is loaded once at startup,
// validated, and read-only afterwards, so it may be shared freely.
type Flow struct {
	greetingStepID string
	steps          map[string]*models.FlowStep
}

// flowFile is the on-disk shape of a flow definition.
type flowFile struct {
	GreetingStep string             `json:"greeting_step"`
	Steps        []*models.FlowStep `json:"steps"`
}

// LoadDefault parses the embedded consultation flow.
func LoadDefault() (*Flow, error) {
	return parseFlow(defaultFlowData)
}

// LoadFromFile loads a flow definition from path, allowing deployments to
// override the embedded script without rebuilding.
func LoadFromFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	f, err := parseFlow(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flow file %s: %w", path, err)
	}
	slog.Info("flow.LoadFromFile: flow definition loaded", "file", path, "steps", len(f.steps))
	return f, nil
}

func parseFlow(data []byte) (*Flow, error) {
	var file flowFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow definition: %w", err)
	}

	f := &Flow{
		greetingStepID: file.GreetingStep,
		steps:          make(map[string]*models.FlowStep, len(file.Steps)),
	}
	for _, step := range file.Steps {
		if step.ID == "" {
			return nil, models.ErrEmptyFlowStep
		}
		if _, exists := f.steps[step.ID]; exists {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateStep, step.ID)
		}
		f.steps[step.ID] = step
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// validate checks referential integrity of the graph: the greeting step must
// exist, every option's next must resolve, and option ids must be unique
// within their step.
func (f *Flow) validate() error {
	if f.greetingStepID == "" {
		return models.ErrNoGreetingStep
	}
	if _, ok := f.steps[f.greetingStepID]; !ok {
		return fmt.Errorf("%w: %s", models.ErrNoGreetingStep, f.greetingStepID)
	}

	for _, step := range f.steps {
		seen := make(map[string]bool, len(step.Options))
		for _, opt := range step.Options {
			if seen[opt.ID] {
				return fmt.Errorf("step %s has duplicate option id %s", step.ID, opt.ID)
			}
			seen[opt.ID] = true
			if opt.Next == "" {
				continue // terminal branch
			}
			if _, ok := f.steps[opt.Next]; !ok {
				return fmt.Errorf("%w: step %s option %s -> %s", models.ErrUnknownNextStep, step.ID, opt.ID, opt.Next)
			}
		}
	}
	return nil
}

// GreetingStepID returns the id of the step every new session starts at.
func (f *Flow) GreetingStepID() string {
	return f.greetingStepID
}

// Step looks up a step by id.
func (f *Flow) Step(id string) (*models.FlowStep, bool) {
	step, ok := f.steps[id]
	return step, ok
}

// renderStep builds the response payload shown to the user for a step.
func renderStep(step *models.FlowStep) *models.StepResponse {
	return &models.StepResponse{
		Step:             step.ID,
		Message:          step.Message,
		Options:          step.Options,
		RequiredFields:   step.RequiredFields,
		CatInfoFields:    step.CatInfoFields,
		AdditionalFields: step.AdditionalFields,
	}
}
