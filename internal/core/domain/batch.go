package domain

// BatchResult aggregates the outcome of a client-streaming create run.
// CreatedIDs follow completion order, Errors follow arrival order.
type BatchResult struct {
	CreatedCount int      `json:"created_count"`
	CreatedIDs   []UserID `json:"created_ids"`
	Errors       []string `json:"errors"`
}

func NewBatchResult() *BatchResult {
	return &BatchResult{
		CreatedIDs: []UserID{},
		Errors:     []string{},
	}
}

func (r *BatchResult) RecordCreated(id UserID) {
	r.CreatedCount++
	r.CreatedIDs = append(r.CreatedIDs, id)
}

func (r *BatchResult) RecordFailure(msg string) {
	r.Errors = append(r.Errors, msg)
}
