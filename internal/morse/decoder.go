// internal/morse/decoder.go
package morse

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ColonelBlimp/morsevision/internal/signal"
	"go.uber.org/zap"
)

var (
	// ErrTrieRequired indicates a decoder needs a trie to walk
	ErrTrieRequired = errors.New("trie is required")

	// ErrUsage is wrapped by every input ordering violation. It means the
	// event source is malformed and decoding must not continue blindly.
	ErrUsage = errors.New("signal usage violation")
	// ErrOutOfOrder indicates a non-increasing timestamp (zero or negative interval)
	ErrOutOfOrder = fmt.Errorf("%w: timestamps must strictly increase", ErrUsage)
	// ErrRepeatedState indicates two consecutive events with the same state
	ErrRepeatedState = fmt.Errorf("%w: states must alternate", ErrUsage)
	// ErrClosedEndWithoutBegin indicates an open event before any closed event
	ErrClosedEndWithoutBegin = fmt.Errorf("%w: closed interval ended before it began", ErrUsage)
	// ErrUnknownState indicates an event state that is neither open nor closed
	ErrUnknownState = fmt.Errorf("%w: unknown signal state", ErrUsage)
)

// State is the decoder's position in the commit protocol.
type State uint8

const (
	// Idle means the cursor is at Root and nothing is waiting to commit.
	Idle State = iota
	// Pending means a partial symbol is being entered or awaits its commit.
	Pending
)

// String implements fmt.Stringer
func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// OutputKind identifies what an Output reports.
type OutputKind uint8

const (
	// KindElement reports an accepted dot or dash.
	KindElement OutputKind = iota
	// KindCharacter reports a committed letter.
	KindCharacter
	// KindWordSpace reports an inserted word space.
	KindWordSpace
)

// Output is delivered to the callback for every element, commit and word space.
type Output struct {
	Kind OutputKind
	// Character is the committed letter, or ' ' for a word space
	Character rune
	// Element is the accepted element (KindElement only)
	Element Element
	// Code is the partial dot/dash path after an element, or the full code of
	// a committed letter
	Code string
	// Timestamp is the signal time the output refers to
	Timestamp time.Time
}

// Callback receives decoder output. It is invoked after the decoder's lock is
// released, so it may call back into the decoder, but it must be fast.
type Callback func(output Output)

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for element and commit tracing.
func WithLogger(log *zap.Logger) Option {
	return func(d *Decoder) {
		if log != nil {
			d.log = log
		}
	}
}

// WithCallback sets the initial output callback.
func WithCallback(cb Callback) Option {
	return func(d *Decoder) {
		d.callback = cb
	}
}

// Decoder turns open/closed transitions into committed letters.
//
// The commit timer is an explicit deadline. Before any event is applied the
// deadline is checked against the event's timestamp, so an overdue commit
// always lands before the event that follows it and a cancelled countdown can
// never fire late. Live callers drive Tick from a timer; replay callers only
// need to Tick once past the last event.
type Decoder struct {
	trie   *Trie
	timing Timing
	log    *zap.Logger

	mu         sync.Mutex
	cursor     Node
	transcript []rune
	deadline   time.Time
	armed      bool

	// Input tracking
	started bool
	level   signal.State
	last    time.Time

	callback Callback
	outbox   []Output
}

// NewDecoder creates a decoder walking trie with the given thresholds.
func NewDecoder(trie *Trie, timing Timing, opts ...Option) (*Decoder, error) {
	if trie == nil {
		return nil, ErrTrieRequired
	}
	if err := timing.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing: %w", err)
	}
	d := &Decoder{
		trie:   trie,
		timing: timing,
		log:    zap.NewNop(),
		cursor: Root,
		level:  signal.Open,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SetCallback replaces the output callback. A nil callback disables output.
func (d *Decoder) SetCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = cb
}

// HandleEvent applies one transition. Events must arrive in chronological
// order with alternating states, starting with Closed; a violation returns an
// error wrapping ErrUsage and leaves the decoder untouched.
func (d *Decoder) HandleEvent(ev signal.Event) error {
	d.mu.Lock()
	err := d.handleEvent(ev)
	out, cb := d.takeOutput()
	d.mu.Unlock()

	dispatch(cb, out)
	return err
}

func (d *Decoder) handleEvent(ev signal.Event) error {
	if err := d.checkEvent(ev); err != nil {
		d.log.Warn("rejected signal event",
			zap.Stringer("state", ev.State),
			zap.Time("timestamp", ev.Timestamp),
			zap.Error(err))
		return err
	}

	d.tick(ev.Timestamp)

	switch ev.State {
	case signal.Closed:
		var openFor time.Duration
		if d.started {
			openFor = ev.Timestamp.Sub(d.last)
		}
		d.closedBegin(openFor, ev.Timestamp)
	case signal.Open:
		d.closedEnd(ev.Timestamp.Sub(d.last), ev.Timestamp)
	}

	d.started = true
	d.level = ev.State
	d.last = ev.Timestamp
	return nil
}

func (d *Decoder) checkEvent(ev signal.Event) error {
	switch {
	case ev.State != signal.Open && ev.State != signal.Closed:
		return fmt.Errorf("%w: %v", ErrUnknownState, ev.State)
	case !d.started && ev.State == signal.Open:
		return ErrClosedEndWithoutBegin
	case d.started && ev.State == d.level:
		return fmt.Errorf("%w: got %v twice", ErrRepeatedState, ev.State)
	case d.started && !ev.Timestamp.After(d.last):
		return fmt.Errorf("%w: %v is not after %v", ErrOutOfOrder,
			ev.Timestamp.Format(time.RFC3339Nano), d.last.Format(time.RFC3339Nano))
	}
	return nil
}

// closedBegin inserts a word space after a long enough silence and stops the
// commit countdown while the next element is entered.
func (d *Decoder) closedBegin(openFor time.Duration, at time.Time) {
	if openFor > d.timing.InterWordGap {
		d.transcript = append(d.transcript, ' ')
		d.log.Debug("word space", zap.Duration("open", openFor))
		d.emit(Output{Kind: KindWordSpace, Character: ' ', Timestamp: at})
	}
	d.armed = false
}

// closedEnd classifies a finished closed interval and walks the trie.
func (d *Decoder) closedEnd(closedFor time.Duration, at time.Time) {
	el := d.timing.Classify(closedFor)
	if el == Noise {
		d.log.Debug("noise discarded", zap.Duration("closed", closedFor))
		return
	}

	next := d.trie.Step(d.cursor, el == Dot)
	if d.trie.IsRoot(next) {
		d.log.Debug("sequence has no symbol, starting over",
			zap.String("code", d.trie.Code(d.cursor)),
			zap.Stringer("element", el))
	} else {
		d.log.Debug("element",
			zap.Stringer("element", el),
			zap.Duration("closed", closedFor),
			zap.String("code", d.trie.Code(next)))
		d.emit(Output{Kind: KindElement, Element: el, Code: d.trie.Code(next), Timestamp: at})
	}
	d.cursor = next
	d.deadline = at.Add(d.timing.InterLetterGap)
	d.armed = true
}

// tick fires the commit if its deadline has passed.
func (d *Decoder) tick(now time.Time) {
	if d.armed && !now.Before(d.deadline) {
		d.commit(d.deadline)
	}
}

func (d *Decoder) commit(at time.Time) {
	if symbol, ok := d.trie.Symbol(d.cursor); ok {
		d.transcript = append(d.transcript, symbol)
		code := d.trie.Code(d.cursor)
		d.log.Debug("commit", zap.String("symbol", string(symbol)), zap.String("code", code))
		d.emit(Output{Kind: KindCharacter, Character: symbol, Code: code, Timestamp: at})
	}
	d.cursor = Root
	d.armed = false
}

// Tick commits the pending symbol if its deadline is at or before now.
func (d *Decoder) Tick(now time.Time) {
	d.mu.Lock()
	d.tick(now)
	out, cb := d.takeOutput()
	d.mu.Unlock()

	dispatch(cb, out)
}

// Deadline returns when the pending symbol will commit, if a countdown is armed.
func (d *Decoder) Deadline() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deadline, d.armed
}

// ClearTranscript empties the transcript. The cursor and countdown are kept.
func (d *Decoder) ClearTranscript() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transcript = d.transcript[:0]
}

// AbandonCurrentSymbol drops the partial symbol without committing it.
func (d *Decoder) AbandonCurrentSymbol() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor != Root {
		d.log.Debug("symbol abandoned", zap.String("code", d.trie.Code(d.cursor)))
	}
	d.cursor = Root
	d.armed = false
}

// Reset returns the decoder to its initial state, including input tracking.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = Root
	d.transcript = d.transcript[:0]
	d.armed = false
	d.deadline = time.Time{}
	d.started = false
	d.level = signal.Open
	d.last = time.Time{}
}

// Transcript returns the committed text.
func (d *Decoder) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.transcript)
}

// Cursor returns the current trie position.
func (d *Decoder) Cursor() Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Pending returns the letter the current partial entry would commit as.
func (d *Decoder) Pending() (rune, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trie.Symbol(d.cursor)
}

// PendingCode returns the dot/dash path entered so far.
func (d *Decoder) PendingCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trie.Code(d.cursor)
}

// State reports Pending while a partial symbol exists or a countdown is armed.
func (d *Decoder) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armed || d.cursor != Root {
		return Pending
	}
	return Idle
}

// OpenFor returns how long the input has been open as of now, or zero while
// it is closed or before the first event.
func (d *Decoder) OpenFor(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.level != signal.Open || now.Before(d.last) {
		return 0
	}
	return now.Sub(d.last)
}

// Timing returns the decoder's thresholds.
func (d *Decoder) Timing() Timing {
	return d.timing
}

// Trie returns the shared trie the decoder walks.
func (d *Decoder) Trie() *Trie {
	return d.trie
}

func (d *Decoder) emit(o Output) {
	d.outbox = append(d.outbox, o)
}

func (d *Decoder) takeOutput() ([]Output, Callback) {
	if len(d.outbox) == 0 {
		return nil, d.callback
	}
	out := d.outbox
	d.outbox = nil
	return out, d.callback
}

func dispatch(cb Callback, out []Output) {
	if cb == nil {
		return
	}
	for _, o := range out {
		cb(o)
	}
}
