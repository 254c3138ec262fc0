// Package intent turns raw user text, French or English, into a structured
// command the rest of the assistant pipeline can act on. Parsing never
// fails: input nothing matches degrades to a read-task guess so downstream
// guards always have something to accept or reject.
package intent

type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpList   Operation = "list"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

type Resource string

const (
	ResTask   Resource = "task"
	ResClient Resource = "client"
	ResOrder  Resource = "order"
	ResEvent  Resource = "event"
)

// Intent is the parsed form of one user utterance. Immutable once produced.
type Intent struct {
	Operation       Operation      `json:"operation"`
	Resource        Resource       `json:"resource"`
	Params          map[string]any `json:"params"`
	ConfirmRequired bool           `json:"confirm_required"`
	RawInput        string         `json:"raw_input"`
}

// Resources lists all supported resource kinds.
func Resources() []Resource {
	return []Resource{ResTask, ResClient, ResOrder, ResEvent}
}

// Operations lists all supported operations.
func Operations() []Operation {
	return []Operation{OpCreate, OpRead, OpList, OpUpdate, OpDelete}
}
