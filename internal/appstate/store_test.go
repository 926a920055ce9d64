package appstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tabapp/tabapp/internal/logging"
)

func newStore(t *testing.T) (*Store, *Writer) {
	t.Helper()
	s, w := New(logging.Discard())
	t.Cleanup(s.Close)
	return s, w
}

func TestSetDisplayNameIsIdempotent(t *testing.T) {
	s, w := newStore(t)
	ctx := context.Background()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	if err := w.SetDisplayName(ctx, "Anna"); err != nil {
		t.Fatalf("set display name: %v", err)
	}
	if err := w.SetDisplayName(ctx, "Anna"); err != nil {
		t.Fatalf("set display name again: %v", err)
	}

	snap := s.Snapshot()
	if snap.DisplayName != "Anna" || snap.Version != 1 {
		t.Fatalf("expected one committed change, got %+v", snap)
	}

	select {
	case st := <-updates:
		if st.DisplayName != "Anna" {
			t.Fatalf("unexpected update %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an update")
	}
	select {
	case st := <-updates:
		t.Fatalf("unexpected second update %+v", st)
	default:
	}
}

func TestForeignWriterIsRejected(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	var stray Writer
	if err := stray.SetDisplayName(ctx, "Mallory"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := s.send(ctx, command{from: &Writer{store: s}, identity: true, apply: func(st *State) bool {
		st.DisplayName = "Mallory"
		return true
	}}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for second writer, got %v", err)
	}
	if s.DisplayName() != "" {
		t.Fatalf("display name must be unchanged, got %q", s.DisplayName())
	}
}

func TestTokenAndReset(t *testing.T) {
	s, w := newStore(t)
	ctx := context.Background()

	token := "abc"
	if err := w.SetDisplayName(ctx, "Anna"); err != nil {
		t.Fatalf("set display name: %v", err)
	}
	if err := w.SetToken(ctx, &token); err != nil {
		t.Fatalf("set token: %v", err)
	}
	token = "mutated"
	if got, ok := s.Token(); !ok || got != "abc" {
		t.Fatalf("expected committed token abc, got %q %v", got, ok)
	}

	if err := s.AddPhoto(ctx, Photo{ID: "p1", URI: "file:///p1.jpg"}); err != nil {
		t.Fatalf("add photo: %v", err)
	}
	if err := w.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	snap := s.Snapshot()
	if snap.DisplayName != "" || snap.Token != nil {
		t.Fatalf("expected identity fields cleared, got %+v", snap)
	}
	if len(snap.Photos) != 1 {
		t.Fatalf("reset must keep photos, got %+v", snap.Photos)
	}
}

func TestPhotosPrependAndRemove(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	first, second := NewPhoto("file:///1.jpg"), NewPhoto("file:///2.jpg")
	for _, p := range []Photo{first, second} {
		if err := s.AddPhoto(ctx, p); err != nil {
			t.Fatalf("add photo: %v", err)
		}
	}
	photos := s.Snapshot().Photos
	if len(photos) != 2 || photos[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", photos)
	}

	before := s.Snapshot().Version
	if err := s.RemovePhoto(ctx, "missing"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if s.Snapshot().Version != before {
		t.Fatalf("removing an unknown photo must not bump the version")
	}
	if err := s.RemovePhoto(ctx, second.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	photos = s.Photos()
	if len(photos) != 1 || photos[0].ID != first.ID {
		t.Fatalf("expected only first photo, got %+v", photos)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	if err := s.AddPhoto(ctx, Photo{ID: "p1"}); err != nil {
		t.Fatalf("add photo: %v", err)
	}
	snap := s.Snapshot()
	snap.Photos[0].ID = "changed"
	if s.Snapshot().Photos[0].ID != "p1" {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}

func TestClosedStore(t *testing.T) {
	s, w := New(logging.Discard())
	s.Close()
	s.Close()
	if err := w.SetDisplayName(context.Background(), "Anna"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	ch, _ := s.Subscribe()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed subscription")
	}
}
