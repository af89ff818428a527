// Package router decides what an inbound event means: a one-off operation, a
// step of a running conversation, or nothing at all.
package router

import (
	"strings"

	"github.com/BatmanBruc/any2any-bot/internal/formats"
	"github.com/BatmanBruc/any2any-bot/internal/session"
	"github.com/BatmanBruc/any2any-bot/types"
)

type Kind int

const (
	KindIgnore Kind = iota
	KindSingleShot
	KindConversation
)

func (k Kind) String() string {
	switch k {
	case KindSingleShot:
		return "single_shot"
	case KindConversation:
		return "conversation"
	}
	return "ignore"
}

type Operation int

const (
	OpNone Operation = iota
	OpWelcome
	OpHelp
	OpPdfToText
	OpDocxToPdf
	OpImageOcr
	OpPdfToImages
	OpFileInfo
	OpCompress
	OpImageToPdf
)

func (o Operation) String() string {
	switch o {
	case OpWelcome:
		return "welcome"
	case OpHelp:
		return "help"
	case OpPdfToText:
		return "pdf2text"
	case OpDocxToPdf:
		return "docx2pdf"
	case OpImageOcr:
		return "ocr"
	case OpPdfToImages:
		return "pdf2img"
	case OpFileInfo:
		return "info"
	case OpCompress:
		return "compress"
	case OpImageToPdf:
		return "img2pdf"
	}
	return "none"
}

// Reason explains an ignored event; ReasonNone means stay silent.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonPlainText
	ReasonUnknownCommand
	ReasonNothingToCancel
	ReasonAttachmentRequired
	ReasonUnsupportedFormat
	ReasonStaleButton
)

type Action struct {
	Kind Kind
	Op   Operation
	// Entry is set when a conversation action starts a new flow.
	Entry     session.Flow
	Reason    Reason
	Directive string
	Event     types.Event
}

const DirectiveCancel = "/cancel"

type rule struct {
	op        Operation
	flow      session.Flow
	cancel    bool
	needsFile bool
}

// directives is the whole command vocabulary. Entry commands only count in
// plain text messages; file operations only as captions.
var directives = map[string]rule{
	"/start":        {op: OpWelcome},
	"/help":         {op: OpHelp},
	"/text2pdf":     {flow: session.FlowTextToPdf},
	"/merge":        {flow: session.FlowMerge},
	"/extract":      {flow: session.FlowExtractPages},
	DirectiveCancel: {cancel: true},
	"/img2pdf":      {op: OpImageToPdf, needsFile: true},
	"/pdf2img":      {op: OpPdfToImages, needsFile: true},
	"/info":         {op: OpFileInfo, needsFile: true},
	"/compress":     {op: OpCompress, needsFile: true},
}

// Directive returns the lower-cased leading command of text without any
// "@botname" suffix, or "" when text does not start with one.
func Directive(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

type Sessions interface {
	Has(key int64) bool
}

type Router struct {
	sessions Sessions
}

func New(sessions Sessions) *Router {
	return &Router{sessions: sessions}
}

// Route decides what ev should trigger. An active session receives every
// event except text entry commands, /start and /help.
func (r *Router) Route(ev types.Event) Action {
	act := Action{Event: ev}
	active := r.sessions.Has(ev.From.Key())

	if ev.Kind == types.EventExpire {
		if active {
			act.Kind = KindConversation
		}
		return act
	}

	if ev.Kind != types.EventCallback {
		act.Directive = Directive(ev.Text)
	}
	rule, known := directives[act.Directive]

	if ev.Kind == types.EventText && known && rule.flow != session.FlowNone {
		act.Kind = KindConversation
		act.Entry = rule.flow
		return act
	}

	if active {
		if ev.Kind == types.EventText && known && (rule.op == OpWelcome || rule.op == OpHelp) {
			return singleShot(act, rule.op)
		}
		act.Kind = KindConversation
		return act
	}

	switch ev.Kind {
	case types.EventCallback:
		return ignore(act, ReasonStaleButton)
	case types.EventText:
		switch {
		case act.Directive == "":
			return ignore(act, ReasonPlainText)
		case !known:
			return ignore(act, ReasonUnknownCommand)
		case rule.cancel:
			return ignore(act, ReasonNothingToCancel)
		case rule.needsFile:
			return ignore(act, ReasonAttachmentRequired)
		}
		return singleShot(act, rule.op)
	case types.EventDocument, types.EventPhoto:
		if known && rule.needsFile {
			return singleShot(act, rule.op)
		}
		return byMediaType(act)
	}
	return act
}

func byMediaType(act Action) Action {
	if act.Event.Kind == types.EventPhoto {
		return singleShot(act, OpImageOcr)
	}
	att := act.Event.Attachment
	if att == nil {
		return ignore(act, ReasonUnsupportedFormat)
	}
	switch formats.Classify(att.FileName, att.MimeType) {
	case formats.KindPdf:
		return singleShot(act, OpPdfToText)
	case formats.KindDocx:
		return singleShot(act, OpDocxToPdf)
	case formats.KindImage:
		return singleShot(act, OpImageOcr)
	}
	return ignore(act, ReasonUnsupportedFormat)
}

func singleShot(act Action, op Operation) Action {
	act.Kind = KindSingleShot
	act.Op = op
	return act
}

func ignore(act Action, reason Reason) Action {
	act.Kind = KindIgnore
	act.Reason = reason
	return act
}
