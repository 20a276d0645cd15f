package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
)

// DefaultDebounce is the window in which an identical query is treated as a
// duplicate submission
const DefaultDebounce = 5 * time.Second

// Processor answers one query against a context snapshot
type Processor interface {
	Process(ctx context.Context, text string, cc *model.ConversationContext) *model.Envelope
}

// Stats summarizes a session
type Stats struct {
	Questions int
	Messages  int
}

// Session keeps the conversation history and the rolling context of one
// user. Turns are processed one at a time.
type Session struct {
	id        model.SessionID
	processor Processor
	debounce  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	history  []*model.Envelope
	context  model.ConversationContext
	last     *model.Envelope
	lastDone time.Time
}

type SessionOption func(*Session)

// WithDebounce sets the duplicate submission window. Zero disables the guard.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) {
		s.debounce = d
	}
}

// WithClock replaces the time source of the duplicate guard
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

func NewSession(processor Processor, opts ...SessionOption) *Session {
	s := &Session{
		id:        model.NewSessionID(),
		processor: processor,
		debounce:  DefaultDebounce,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() model.SessionID {
	return s.id
}

// Process runs one turn. When text repeats the previous query within the
// debounce window of its completion, the previous envelope is returned,
// nothing is appended and the second result is false.
func (s *Session) Process(ctx context.Context, text string) (*model.Envelope, bool) {
	text = strings.TrimSpace(text)
	ctx = logging.With(ctx, logging.From(ctx).With("session_id", s.id))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && s.debounce > 0 &&
		s.last.Query == text && s.now().Sub(s.lastDone) < s.debounce {
		logging.From(ctx).Debug("duplicate query ignored", "query", text)
		return s.last, false
	}

	env := s.processor.Process(ctx, text, s.context.Clone())

	s.appendTurn(env)
	if !env.Failed() {
		s.context.Merge(env.Data)
	}
	s.last = env
	s.lastDone = s.now()

	return env, true
}

// AppendTurn adds an envelope to the history
func (s *Session) AppendTurn(env *model.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendTurn(env)
}

func (s *Session) appendTurn(env *model.Envelope) {
	if env != nil {
		s.history = append(s.history, env)
	}
}

// MergeContext merges a partial payload into the rolling context
func (s *Session) MergeContext(partial *model.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context.Merge(partial)
}

// Reset clears history, context and the duplicate guard together
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.context.Clear()
	s.last = nil
	s.lastDone = time.Time{}
}

// History returns a copy of the envelopes in arrival order
func (s *Session) History() []*model.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Envelope(nil), s.history...)
}

// Context returns a snapshot of the rolling context
func (s *Session) Context() *model.ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context.Clone()
}

func (s *Session) Messages() []model.Message {
	return model.MessagesFrom(s.History())
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Questions: len(s.history),
		Messages:  len(s.history) * 2,
	}
}
