// Package session holds the per-user state of multi-step flows.
package session

import (
	"time"

	"github.com/BatmanBruc/any2any-bot/types"
)

type Flow int

const (
	FlowNone Flow = iota
	FlowTextToPdf
	FlowMerge
	FlowExtractPages
)

func (f Flow) String() string {
	switch f {
	case FlowTextToPdf:
		return "text2pdf"
	case FlowMerge:
		return "merge"
	case FlowExtractPages:
		return "extract"
	}
	return "none"
}

type State int

const (
	StateAwaitingText State = iota + 1
	StateAwaitingPdf
	StateAwaitingRange
)

func (s State) String() string {
	switch s {
	case StateAwaitingText:
		return "awaiting_text"
	case StateAwaitingPdf:
		return "awaiting_pdf"
	case StateAwaitingRange:
		return "awaiting_range"
	}
	return "unknown"
}

// Session is one identity's position in a flow. Files are owned by the session
// while it is stored; whoever removes it from the Store releases them.
type Session struct {
	Owner     types.Identity
	Flow      Flow
	State     State
	Files     []*types.StoredFile
	PageCount int
	StartedAt time.Time
	TouchedAt time.Time

	version uint64
}

func (s Session) clone() Session {
	c := s
	c.Files = append([]*types.StoredFile(nil), s.Files...)
	return c
}
