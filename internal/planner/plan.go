package planner

import (
	"time"

	"github.com/google/uuid"
)

// Step and plan statuses. Steps move pending -> in_progress -> one of
// {completed, failed}; the plan mirrors its steps.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// TaskStep is one planned tool invocation.
type TaskStep struct {
	Index       int            `json:"index"`
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Params      map[string]any `json:"params"`
	Status      string         `json:"status"`
	Completed   bool           `json:"completed"`
	Result      string         `json:"result,omitempty"`
}

// TaskPlan is an ordered step program for one complex query.
type TaskPlan struct {
	ID        string      `json:"id"`
	Query     string      `json:"query"`
	Category  string      `json:"category"`
	Steps     []*TaskStep `json:"steps"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

func newPlan(query, category string, steps []*TaskStep) *TaskPlan {
	return &TaskPlan{
		ID:        "plan_" + uuid.NewString()[:8],
		Query:     query,
		Category:  category,
		Steps:     steps,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// StartStep marks step i in progress, and the plan with it.
func (p *TaskPlan) StartStep(i int) {
	p.Status = StatusInProgress
	p.Steps[i].Status = StatusInProgress
}

// CompleteStep records a step success. Completing the last step completes
// the plan.
func (p *TaskPlan) CompleteStep(i int, result string) {
	step := p.Steps[i]
	step.Status = StatusCompleted
	step.Completed = true
	step.Result = result
	if i == len(p.Steps)-1 {
		p.Status = StatusCompleted
	}
}

// FailStep records a step failure and fails the plan.
func (p *TaskPlan) FailStep(i int, result string) {
	step := p.Steps[i]
	step.Status = StatusFailed
	step.Result = result
	p.Status = StatusFailed
}

// CurrentStep equals the number of completed steps.
func (p *TaskPlan) CurrentStep() int {
	n := 0
	for _, step := range p.Steps {
		if step.Completed {
			n++
		}
	}
	return n
}
