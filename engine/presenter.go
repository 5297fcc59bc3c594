package engine

import (
	"strings"
	"sync/atomic"

	"predictivecoder/logger"
	"predictivecoder/metrics"
	"predictivecoder/text"
)

// Presenter owns the ghost text of one editor: it renders a suggestion at an
// anchor and applies line-wise or full accepts.
//
// Calls made while another call is running return without effect.
type Presenter struct {
	editor   Editor
	tracker  Tracker
	updating atomic.Bool

	anchor    int
	full      string
	remaining []string
	metrics   *metrics.CompletionMetrics
}

// NewPresenter creates a presenter for editor. tracker may be nil.
func NewPresenter(editor Editor, tracker Tracker) *Presenter {
	return &Presenter{editor: editor, tracker: tracker}
}

// Show renders raw at offset after removing the part of it that repeats
// prefix. It reports whether anything is displayed.
func (p *Presenter) Show(offset int, raw, prefix string) bool {
	if !p.updating.CompareAndSwap(false, true) {
		return false
	}
	defer p.updating.Store(false)

	cleaned := text.StripEchoedPrefix(raw, prefix)
	units := text.SplitUnits(cleaned)
	if len(units) == 0 {
		logger.Debug("presenter: nothing to show after cleaning")
		return false
	}

	p.clear()
	p.anchor = offset
	p.full = cleaned
	p.remaining = units
	if err := p.editor.ShowGhostText(offset, strings.Join(units, "\n")); err != nil {
		logger.Error("presenter: show ghost text: %v", err)
		p.reset()
		return false
	}

	p.metrics = metrics.NewCompletionMetrics(p.editor.FileType(), len(units))
	if p.tracker != nil {
		p.tracker.TrackShown(p.metrics)
	}
	return true
}

// AcceptLine inserts the first remaining unit at the caret, followed by a
// line break when more units remain, and re-renders the rest. It reports
// whether units remain.
func (p *Presenter) AcceptLine() bool {
	if !p.updating.CompareAndSwap(false, true) {
		return false
	}
	defer p.updating.Store(false)

	if len(p.remaining) == 0 {
		return false
	}

	unit := p.remaining[0]
	rest := p.remaining[1:]
	insert := unit
	if len(rest) > 0 {
		insert += "\n"
	}

	if err := p.insert(insert); err != nil {
		logger.Error("presenter: accept line: %v", err)
		return len(p.remaining) > 0
	}
	p.remaining = rest
	p.trackAccepted(1, len(rest) == 0)

	if len(rest) == 0 {
		p.clear()
		return false
	}

	p.anchor = p.editor.CaretOffset()
	if err := p.editor.ShowGhostText(p.anchor, strings.Join(rest, "\n")); err != nil {
		logger.Error("presenter: re-render: %v", err)
	}
	return true
}

// AcceptFull inserts every remaining unit at the caret and clears.
func (p *Presenter) AcceptFull() {
	if !p.updating.CompareAndSwap(false, true) {
		return
	}
	defer p.updating.Store(false)

	if len(p.remaining) == 0 {
		return
	}

	n := len(p.remaining)
	if err := p.insert(strings.Join(p.remaining, "\n")); err != nil {
		logger.Error("presenter: accept full: %v", err)
		return
	}
	p.remaining = nil
	p.trackAccepted(n, true)
	p.clear()
}

// Clear removes the ghost text and resets state. Safe to call repeatedly.
func (p *Presenter) Clear() {
	if !p.updating.CompareAndSwap(false, true) {
		return
	}
	defer p.updating.Store(false)
	p.clear()
}

// Active reports whether a suggestion is displayed.
func (p *Presenter) Active() bool {
	return len(p.remaining) > 0
}

// Remaining returns a copy of the units not yet accepted.
func (p *Presenter) Remaining() []string {
	return append([]string(nil), p.remaining...)
}

// insert writes s at the caret and reformats the inserted lines.
func (p *Presenter) insert(s string) error {
	offset := p.editor.CaretOffset()
	if err := p.editor.InsertText(offset, s); err != nil {
		return err
	}
	if err := p.editor.Reformat(offset, offset+len(s)); err != nil {
		logger.Debug("presenter: reformat skipped: %v", err)
	}
	return nil
}

func (p *Presenter) trackAccepted(lines int, full bool) {
	if p.tracker == nil || p.metrics == nil {
		return
	}
	m := *p.metrics
	m.Additions = lines
	m.Full = full
	p.tracker.TrackAccepted(&m)
}

func (p *Presenter) clear() {
	if len(p.remaining) > 0 && p.tracker != nil && p.metrics != nil {
		p.tracker.TrackDisposed(p.metrics)
	}
	if p.full != "" || len(p.remaining) > 0 {
		if err := p.editor.ClearGhostText(); err != nil {
			logger.Debug("presenter: clear ghost text: %v", err)
		}
	}
	p.reset()
}

func (p *Presenter) reset() {
	p.anchor = 0
	p.full = ""
	p.remaining = nil
	p.metrics = nil
}
