package services

import "hrms_go/services/notifications"

// ActivitySink receives fire-and-forget activity entries. Implementations must not block.
type ActivitySink interface {
	Emit(a notifications.Activity)
}

type discardSink struct{}

func (discardSink) Emit(notifications.Activity) {}

func sinkOrDiscard(s ActivitySink) ActivitySink {
	if s == nil {
		return discardSink{}
	}
	return s
}
