package models

// TaskList is a Google Tasks task list.
type TaskList struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Task is a Google Tasks task. ListID is not part of the API payload; the
// client fills it in so callers know where to patch the task.
type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status,omitempty"`
	Completed string `json:"completed,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
	ListID    string `json:"-"`
}

// Task status values used by the Google Tasks API.
const (
	TaskStatusNeedsAction = "needsAction"
	TaskStatusCompleted   = "completed"
)

// IsCompleted reports whether a human has checked the task off.
func (t Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted || t.Completed != ""
}
