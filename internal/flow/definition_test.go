package flow

import (
	"errors"
	"testing"

	"github.com/playcat/catconsult/internal/models"
)

func TestLoadDefault(t *testing.T) {
	f, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}

	greeting, ok := f.Step(f.GreetingStepID())
	if !ok {
		t.Fatal("greeting step missing from default flow")
	}
	if len(greeting.Options) != 4 {
		t.Errorf("expected 4 greeting options, got %d", len(greeting.Options))
	}
	if greeting.IsForm() {
		t.Error("greeting step must not be a form step")
	}

	form, ok := f.Step("consultation_form")
	if !ok {
		t.Fatal("consultation_form step missing")
	}
	if !form.IsForm() {
		t.Error("consultation_form must be a form step")
	}

	opt, ok := greeting.FindOption("detailed_quote")
	if !ok {
		t.Fatal("detailed_quote option missing from greeting")
	}
	if opt.Next != "consultation_form" {
		t.Errorf("detailed_quote should lead to consultation_form, got %q", opt.Next)
	}
}

func TestParseFlow_Validation(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "unresolved next step",
			data:    `{"greeting_step":"a","steps":[{"id":"a","message":"m","options":[{"id":"x","label":"X","next":"missing"}]}]}`,
			wantErr: models.ErrUnknownNextStep,
		},
		{
			name:    "duplicate step id",
			data:    `{"greeting_step":"a","steps":[{"id":"a","message":"m"},{"id":"a","message":"m2"}]}`,
			wantErr: models.ErrDuplicateStep,
		},
		{
			name:    "missing greeting step",
			data:    `{"greeting_step":"nope","steps":[{"id":"a","message":"m"}]}`,
			wantErr: models.ErrNoGreetingStep,
		},
		{
			name:    "greeting not designated",
			data:    `{"steps":[{"id":"a","message":"m"}]}`,
			wantErr: models.ErrNoGreetingStep,
		},
		{
			name:    "empty step id",
			data:    `{"greeting_step":"a","steps":[{"id":"","message":"m"}]}`,
			wantErr: models.ErrEmptyFlowStep,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseFlow([]byte(tc.data))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestParseFlow_DuplicateOptionID(t *testing.T) {
	data := `{"greeting_step":"a","steps":[{"id":"a","message":"m","options":[{"id":"x","label":"X"},{"id":"x","label":"Y"}]}]}`
	if _, err := parseFlow([]byte(data)); err == nil {
		t.Error("expected duplicate option id to be rejected")
	}
}

func TestParseFlow_TerminalOptionAllowed(t *testing.T) {
	data := `{"greeting_step":"a","steps":[{"id":"a","message":"m","options":[{"id":"x","label":"X"}]}]}`
	if _, err := parseFlow([]byte(data)); err != nil {
		t.Errorf("terminal option (no next) should be valid, got %v", err)
	}
}
