// Package appstate holds the process-wide session-derived values every
// screen reads: the display name, the auth token and the photo list.
//
// All mutations are commands applied in order by a single goroutine. The
// identity fields can only be changed through the Writer handed out once by
// New; everything else receives the read-only Store.
package appstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabapp/tabapp/internal/logging"
)

var (
	// ErrNotOwner is returned when identity fields are written through a
	// handle that does not own the store.
	ErrNotOwner = errors.New("appstate: writer does not own this store")
	// ErrClosed is returned for commands sent after Close.
	ErrClosed = errors.New("appstate: store closed")
)

// Photo is a captured image kept in memory for the session.
type Photo struct {
	ID        string
	URI       string
	CreatedAt time.Time
}

// NewPhoto builds a Photo with a fresh identifier.
func NewPhoto(uri string) Photo {
	return Photo{ID: uuid.NewString(), URI: uri, CreatedAt: time.Now().UTC()}
}

// State is a committed snapshot. Version increases by one for every
// mutation that changed something.
type State struct {
	DisplayName string
	Token       *string
	Photos      []Photo
	Version     uint64
}

func (s State) clone() State {
	out := s
	if s.Token != nil {
		t := *s.Token
		out.Token = &t
	}
	out.Photos = append([]Photo(nil), s.Photos...)
	return out
}

// Reader is the read-only view handed to screens.
type Reader interface {
	Snapshot() State
	DisplayName() string
	Token() (string, bool)
	Photos() []Photo
	Subscribe() (<-chan State, func())
}

var _ Reader = (*Store)(nil)

type command struct {
	from     *Writer
	identity bool
	apply    func(*State) bool
	reply    chan error
}

// Store owns the state and applies commands.
type Store struct {
	cmds   chan command
	done   chan struct{}
	closed sync.Once
	writer *Writer
	logger *slog.Logger

	mu      sync.RWMutex
	state   State
	subs    map[int]chan State
	nextSub int
}

// New starts a store and returns it with its single Writer.
func New(logger *slog.Logger) (*Store, *Writer) {
	s := &Store{
		cmds:   make(chan command),
		done:   make(chan struct{}),
		logger: logging.OrDiscard(logger),
		subs:   make(map[int]chan State),
	}
	s.writer = &Writer{store: s}
	go s.loop()
	return s, s.writer
}

// Close stops the command loop. Pending and later commands fail with ErrClosed.
func (s *Store) Close() {
	s.closed.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
	})
}

func (s *Store) loop() {
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.cmds:
			cmd.reply <- s.apply(cmd)
		}
	}
}

func (s *Store) apply(cmd command) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if cmd.identity && (cmd.from == nil || cmd.from != s.writer) {
		s.logger.Warn("rejected identity write from non-owner")
		return ErrNotOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if !cmd.apply(&next) {
		return nil
	}
	next.Version = s.state.Version + 1
	s.state = next
	for _, ch := range s.subs {
		// Subscribers only care about the latest state; drop a stale one.
		select {
		case <-ch:
		default:
		}
		ch <- next.clone()
	}
	return nil
}

func (s *Store) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest committed state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// DisplayName returns the committed display name.
func (s *Store) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.DisplayName
}

// Token returns the committed token, if any.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Token == nil {
		return "", false
	}
	return *s.state.Token, true
}

// Photos returns the photo list, newest first.
func (s *Store) Photos() []Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Photo(nil), s.state.Photos...)
}

// Subscribe returns a channel receiving each newly committed state (only the
// latest is kept if the reader falls behind) and a function to unsubscribe.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan State, 1)
	id := s.nextSub
	s.nextSub++
	select {
	case <-s.done:
		close(ch)
		return ch, func() {}
	default:
	}
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

// AddPhoto puts p at the front of the photo list.
func (s *Store) AddPhoto(ctx context.Context, p Photo) error {
	return s.send(ctx, command{apply: func(st *State) bool {
		st.Photos = append([]Photo{p}, st.Photos...)
		return true
	}})
}

// RemovePhoto drops the photo with the given id, if present.
func (s *Store) RemovePhoto(ctx context.Context, id string) error {
	return s.send(ctx, command{apply: func(st *State) bool {
		kept := st.Photos[:0]
		for _, p := range st.Photos {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		changed := len(kept) != len(st.Photos)
		st.Photos = kept
		return changed
	}})
}

// Writer is the only handle allowed to change identity-derived fields.
type Writer struct {
	store *Store
}

func (w *Writer) send(ctx context.Context, apply func(*State) bool) error {
	if w == nil || w.store == nil {
		return ErrNotOwner
	}
	return w.store.send(ctx, command{from: w, identity: true, apply: apply})
}

// SetDisplayName commits name. Writing the current value is a no-op.
func (w *Writer) SetDisplayName(ctx context.Context, name string) error {
	return w.send(ctx, func(st *State) bool {
		if st.DisplayName == name {
			return false
		}
		st.DisplayName = name
		return true
	})
}

// SetToken commits token; nil clears it.
func (w *Writer) SetToken(ctx context.Context, token *string) error {
	return w.send(ctx, func(st *State) bool {
		switch {
		case token == nil && st.Token == nil:
			return false
		case token != nil && st.Token != nil && *token == *st.Token:
			return false
		case token == nil:
			st.Token = nil
		default:
			t := *token
			st.Token = &t
		}
		return true
	})
}

// Reset clears the identity fields for sign-out. Photos are kept.
func (w *Writer) Reset(ctx context.Context) error {
	return w.send(ctx, func(st *State) bool {
		if st.DisplayName == "" && st.Token == nil {
			return false
		}
		st.DisplayName = ""
		st.Token = nil
		return true
	})
}
