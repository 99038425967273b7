package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zhouzirui/ocap-chat/internal/store/session"
)

func TestDoPersistsChanges(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	m := NewManager(store)
	ctx := context.Background()

	err := m.Do(ctx, "browser-1", func(d *session.Data) error {
		d.State.Authenticated = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do err: %v", err)
	}

	got, _ := store.Get(ctx, "browser-1")
	if got == nil || !got.State.Authenticated {
		t.Fatalf("expected persisted state, got %+v", got)
	}
}

func TestDoReturnsActionErrorAfterSaving(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	m := NewManager(store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.Do(ctx, "browser-1", func(d *session.Data) error {
		d.Notice = &session.Notice{Level: session.NoticeError, Text: "bad"}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected action error, got %v", err)
	}

	got, _ := store.Get(ctx, "browser-1")
	if got.Notice == nil || got.Notice.Text != "bad" {
		t.Fatal("expected notice to be saved even when the action fails")
	}
}

func TestDoRejectsConcurrentAction(t *testing.T) {
	m := NewManager(session.NewMemoryStore(time.Hour))
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.Do(ctx, "browser-1", func(d *session.Data) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	if !m.Busy("browser-1") {
		t.Fatal("expected session to be busy")
	}
	if err := m.Do(ctx, "browser-1", func(*session.Data) error { return nil }); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := m.Do(ctx, "browser-2", func(*session.Data) error { return nil }); err != nil {
		t.Fatalf("other sessions must not be blocked: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Do err: %v", err)
	}
	if m.Busy("browser-1") {
		t.Fatal("expected guard to be released")
	}
}

func TestViewDuringActionDoesNotSave(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	m := NewManager(store)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.Do(ctx, "browser-1", func(d *session.Data) error {
			close(started)
			<-release
			d.State.Credential = "tok"
			return nil
		})
	}()

	<-started
	err := m.View(ctx, "browser-1", func(d *session.Data) error {
		d.State.Authenticated = true
		return nil
	})
	if err != nil {
		t.Fatalf("View err: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Do err: %v", err)
	}

	got, _ := store.Get(ctx, "browser-1")
	if got.State.Credential != "tok" || got.State.Authenticated {
		t.Fatalf("unexpected stored state %+v", got.State)
	}
}

func TestViewDuringActionKeepsNotice(t *testing.T) {
	m := NewManager(session.NewMemoryStore(time.Hour))
	ctx := context.Background()

	err := m.Do(ctx, "browser-1", func(d *session.Data) error {
		d.Notice = &session.Notice{Level: session.NoticeSuccess, Text: "Login successful!"}
		return nil
	})
	if err != nil {
		t.Fatalf("Do err: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Do(ctx, "browser-1", func(*session.Data) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	m.View(ctx, "browser-1", func(d *session.Data) error {
		if n := d.TakeNotice(); n != nil {
			t.Errorf("busy render must not see the notice, got %+v", n)
		}
		return nil
	})

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Do err: %v", err)
	}

	var shown *session.Notice
	m.View(ctx, "browser-1", func(d *session.Data) error {
		shown = d.TakeNotice()
		return nil
	})
	if shown == nil || shown.Text != "Login successful!" {
		t.Fatalf("expected notice after the action finished, got %+v", shown)
	}

	m.View(ctx, "browser-1", func(d *session.Data) error {
		if n := d.TakeNotice(); n != nil {
			t.Errorf("notice must be shown once, got %+v", n)
		}
		return nil
	})
}
