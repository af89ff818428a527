package types

type EventKind int

const (
	EventText EventKind = iota
	EventDocument
	EventPhoto
	EventCallback
	// EventExpire is produced internally by the idle-session sweeper.
	EventExpire
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventDocument:
		return "document"
	case EventPhoto:
		return "photo"
	case EventCallback:
		return "callback"
	case EventExpire:
		return "expire"
	}
	return "unknown"
}

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeExpired   Outcome = "expired"
)

const (
	CallbackMergeNow    = "merge_now"
	CallbackCancelMerge = "cancel_merge"
)
