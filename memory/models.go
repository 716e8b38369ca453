package memory

import "time"

// Pattern is a reusable code pattern learned from past generations.
type Pattern struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CodeExample string    `json:"code_example,omitempty"`
	Category    string    `json:"category,omitempty"`
	TimesUsed   int       `json:"times_used"`
	CreatedAt   time.Time `json:"created_at"`
}

// BestPractice is a recorded practice with the context it applies to.
type BestPractice struct {
	ID          string    `json:"id"`
	Practice    string    `json:"practice"`
	Context     string    `json:"context,omitempty"`
	LearnedFrom string    `json:"learned_from,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Mistake is a recorded failure. Recording the same mistake from the same
// source bumps Occurrences instead of inserting a new row.
type Mistake struct {
	ID          string    `json:"id"`
	Mistake     string    `json:"mistake"`
	Consequence string    `json:"consequence,omitempty"`
	HowToAvoid  string    `json:"how_to_avoid,omitempty"`
	Source      string    `json:"source,omitempty"`
	Occurrences int       `json:"occurrences"`
	CreatedAt   time.Time `json:"created_at"`
}

// Feedback is user feedback on a project, optionally with an extracted
// learning.
type Feedback struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id,omitempty"`
	Feedback          string    `json:"feedback"`
	Rating            int       `json:"rating"`
	ExtractedLearning string    `json:"extracted_learning,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
