package domain

// RubricCriterion is one graded line item. Order is meaningful and preserved
// all the way into the system prompt.
type RubricCriterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MaxScore    float64 `json:"max_score"`
}

// PromptContext carries the assignment-side inputs to prompt assembly. It is
// supplied by the submission-handling layer and read-only inside the core.
type PromptContext struct {
	AssignmentTitle       string
	AssignmentDescription string

	// InstructorContext is grading guidance that must shape the evaluation
	// but must never be quoted or paraphrased back to the student.
	InstructorContext string

	Rubric []RubricCriterion
}

// FeedbackResponse is the model's grading output as returned to the caller.
type FeedbackResponse struct {
	Feedback     string `json:"feedback"`
	ModelVersion string `json:"model_version"`

	// Degraded is set when the pipeline fell back to a text-only request
	// because the artifact could not be processed.
	Degraded bool `json:"degraded"`
}
