package reconcile

// State is the position of a Session in the return workflow.
type State string

const (
	// StateSearching waits for an invoice number.
	StateSearching State = "searching"
	// StateExistingReturnFound holds the invoice's existing return note,
	// which may be resumed.
	StateExistingReturnFound State = "existing_return_found"
	// StateEditing holds a draft return note.
	StateEditing State = "editing"
	// StateSubmitting waits for the ledger to store the draft.
	StateSubmitting State = "submitting"
	// StateCompleted holds the stored return note.
	StateCompleted State = "completed"
)

// Outcome tells the caller what a Search led to.
type Outcome string

const (
	OutcomeEditing        Outcome = "editing"
	OutcomeExistingReturn Outcome = "existing_return"
)
