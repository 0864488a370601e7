package execution

// Context runs tasks on a logical thread of control.
//
// Tasks submitted with Execute run in submission order and never interleave
// with each other. Sync submits a task and waits for it to finish; it must
// not be called from a task already running on the same Context.
type Context interface {
	Execute(task func())
	Sync(task func())
}

// Inline runs every task immediately on the calling goroutine.
// It provides ordering only for callers that are already serialized.
type Inline struct{}

// Execute implements Context.Execute.
func (Inline) Execute(task func()) { task() }

// Sync implements Context.Sync.
func (Inline) Sync(task func()) { task() }

var _ Context = Inline{}
