package conversation

import (
	"strings"

	"github.com/BatmanBruc/any2any-bot/internal/formats"
	"github.com/BatmanBruc/any2any-bot/internal/router"
	"github.com/BatmanBruc/any2any-bot/internal/session"
	"github.com/BatmanBruc/any2any-bot/types"
)

// Input is the shape of an event as seen by a running flow.
type Input int

const (
	InputText Input = iota
	InputCommand
	InputPdf
	InputFile
	InputPhoto
	InputMergeNow
	InputCancel
	InputUnknownButton
	InputExpire
)

var allInputs = []Input{
	InputText, InputCommand, InputPdf, InputFile, InputPhoto,
	InputMergeNow, InputCancel, InputUnknownButton, InputExpire,
}

func (in Input) String() string {
	switch in {
	case InputText:
		return "text"
	case InputCommand:
		return "command"
	case InputPdf:
		return "pdf"
	case InputFile:
		return "file"
	case InputPhoto:
		return "photo"
	case InputMergeNow:
		return "merge_now"
	case InputCancel:
		return "cancel"
	case InputUnknownButton:
		return "unknown_button"
	case InputExpire:
		return "expire"
	}
	return "unknown"
}

func classify(ev types.Event) Input {
	switch ev.Kind {
	case types.EventExpire:
		return InputExpire
	case types.EventCallback:
		switch ev.Callback {
		case types.CallbackMergeNow:
			return InputMergeNow
		case types.CallbackCancelMerge:
			return InputCancel
		}
		return InputUnknownButton
	case types.EventPhoto:
		return InputPhoto
	case types.EventDocument:
		if ev.Attachment != nil && formats.Classify(ev.Attachment.FileName, ev.Attachment.MimeType) == formats.KindPdf {
			return InputPdf
		}
		return InputFile
	}

	text := strings.TrimSpace(ev.Text)
	if strings.HasPrefix(text, "/") {
		if router.Directive(text) == router.DirectiveCancel {
			return InputCancel
		}
		return InputCommand
	}
	return InputText
}

type step int

const (
	stepReject step = iota
	stepRenderText
	stepAppendPdf
	stepCombine
	stepRecordPdf
	stepExtract
	stepCancel
	stepExpire
)

func (s step) String() string {
	return [...]string{"reject", "render_text", "append_pdf", "combine", "record_pdf", "extract", "cancel", "expire"}[s]
}

type phase struct {
	flow  session.Flow
	state session.State
}

var initialState = map[session.Flow]session.State{
	session.FlowTextToPdf:    session.StateAwaitingText,
	session.FlowMerge:        session.StateAwaitingPdf,
	session.FlowExtractPages: session.StateAwaitingPdf,
}

// transitions lists every input for every live phase. A missing row or cell
// is a bug; TestTransitionTableIsExhaustive guards it.
var transitions = map[phase]map[Input]step{
	{session.FlowTextToPdf, session.StateAwaitingText}: {
		InputText:          stepRenderText,
		InputCommand:       stepReject,
		InputPdf:           stepReject,
		InputFile:          stepReject,
		InputPhoto:         stepReject,
		InputMergeNow:      stepReject,
		InputCancel:        stepCancel,
		InputUnknownButton: stepReject,
		InputExpire:        stepExpire,
	},
	{session.FlowMerge, session.StateAwaitingPdf}: {
		InputText:          stepReject,
		InputCommand:       stepReject,
		InputPdf:           stepAppendPdf,
		InputFile:          stepReject,
		InputPhoto:         stepReject,
		InputMergeNow:      stepCombine,
		InputCancel:        stepCancel,
		InputUnknownButton: stepReject,
		InputExpire:        stepExpire,
	},
	{session.FlowExtractPages, session.StateAwaitingPdf}: {
		InputText:          stepReject,
		InputCommand:       stepReject,
		InputPdf:           stepRecordPdf,
		InputFile:          stepReject,
		InputPhoto:         stepReject,
		InputMergeNow:      stepReject,
		InputCancel:        stepCancel,
		InputUnknownButton: stepReject,
		InputExpire:        stepExpire,
	},
	{session.FlowExtractPages, session.StateAwaitingRange}: {
		InputText:          stepExtract,
		InputCommand:       stepReject,
		InputPdf:           stepReject,
		InputFile:          stepReject,
		InputPhoto:         stepReject,
		InputMergeNow:      stepReject,
		InputCancel:        stepCancel,
		InputUnknownButton: stepReject,
		InputExpire:        stepExpire,
	},
}

func next(flow session.Flow, state session.State, in Input) (step, bool) {
	row, ok := transitions[phase{flow, state}]
	if !ok {
		return stepReject, false
	}
	s, ok := row[in]
	return s, ok
}
