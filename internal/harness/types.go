package harness

import "github.com/roach88/dbforge/internal/merge"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if the expect clause and every assertion hold.
	Pass bool `json:"pass"`

	// Summary is the summary of the last merge pass.
	Summary *merge.Summary `json:"summary"`

	// Err is the error of the last merge pass, if any.
	Err error `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Dir is where the scenario's containers were laid out. It is removed
	// when Run returns, so only its name is meaningful afterwards.
	Dir string `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
