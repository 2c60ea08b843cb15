package session_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/driroane/llamachat/internal/model/chat"
	"github.com/driroane/llamachat/internal/service/session"
)

func TestResolveCreatesSessionForEmptyID(t *testing.T) {
	reg := session.NewRegistry(time.Hour)

	sess, isNew := reg.Resolve("")
	if !isNew {
		t.Fatal("expected a new session for an empty id")
	}
	if sess.ID == "" {
		t.Fatal("expected a generated session id")
	}
	if sess.Len() != 0 {
		t.Fatalf("expected empty transcript, got %d turns", sess.Len())
	}

	other, isNew := reg.Resolve("")
	if !isNew {
		t.Fatal("expected a second new session for an empty id")
	}
	if other.ID == sess.ID {
		t.Fatalf("expected distinct ids, both were %s", sess.ID)
	}
}

func TestResolveReturnsExistingSession(t *testing.T) {
	reg := session.NewRegistry(time.Hour)

	created, _ := reg.Resolve("")
	created.Append(chat.RoleUser, "hello")

	got, isNew := reg.Resolve(created.ID)
	if isNew {
		t.Fatal("expected the existing session, got a new one")
	}
	if got != created {
		t.Fatal("expected the same session instance")
	}
	if got.Len() != 1 {
		t.Fatalf("expected 1 turn, got %d", got.Len())
	}
}

func TestResolveAdoptsUnknownID(t *testing.T) {
	reg := session.NewRegistry(time.Hour)

	sess, isNew := reg.Resolve("client-supplied-id")
	if !isNew {
		t.Fatal("expected a new session for an unknown id")
	}
	if sess.ID != "client-supplied-id" {
		t.Fatalf("expected the supplied id to be adopted, got %s", sess.ID)
	}

	again, isNew := reg.Resolve("client-supplied-id")
	if isNew {
		t.Fatal("expected the adopted session on the second resolve")
	}
	if again != sess {
		t.Fatal("expected the same session instance")
	}
}

func TestResolveConcurrentSameID(t *testing.T) {
	reg := session.NewRegistry(time.Hour)

	const callers = 32
	results := make([]*session.Session, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = reg.Resolve("contended")
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent resolves of the same id produced different sessions")
		}
	}
	if reg.Len() != 1 {
		t.Fatalf("expected exactly 1 session, got %d", reg.Len())
	}
}

func TestSnapshotPreservesOrderAndIsolation(t *testing.T) {
	reg := session.NewRegistry(time.Hour)
	sess, _ := reg.Resolve("")

	const turns = 20
	for i := 0; i < turns; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		sess.Append(role, fmt.Sprintf("turn-%d", i))
	}

	snapshot := sess.Snapshot()
	if len(snapshot) != turns {
		t.Fatalf("expected %d turns, got %d", turns, len(snapshot))
	}
	for i, turn := range snapshot {
		if turn.Text != fmt.Sprintf("turn-%d", i) {
			t.Fatalf("turn %d out of order: %s", i, turn.Text)
		}
	}

	// A turn appended after the snapshot must not show up through it.
	sess.Append(chat.RoleUser, "late")
	if len(snapshot) != turns {
		t.Fatal("snapshot observed a later append")
	}

	// Nor may mutating the snapshot reach the live transcript.
	snapshot[0].Text = "mutated"
	if sess.Snapshot()[0].Text != "turn-0" {
		t.Fatal("snapshot mutation leaked into the transcript")
	}
}

func TestConcurrentAppendsKeepAllTurns(t *testing.T) {
	reg := session.NewRegistry(time.Hour)
	sess, _ := reg.Resolve("")

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				sess.Append(chat.RoleUser, "x")
			}
		}()
	}
	wg.Wait()

	if sess.Len() != writers*perWriter {
		t.Fatalf("lost appends: expected %d turns, got %d", writers*perWriter, sess.Len())
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	reg := session.NewRegistry(time.Minute)

	idle, _ := reg.Resolve("idle")
	if evicted := reg.Sweep(time.Now().UTC()); evicted != 0 {
		t.Fatalf("fresh session evicted: %d", evicted)
	}

	future := idle.LastActiveAt().Add(2 * time.Minute)
	if evicted := reg.Sweep(future); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d sessions", reg.Len())
	}
}

func TestResolveCreatesFreshSessionAfterExpiry(t *testing.T) {
	reg := session.NewRegistry(5 * time.Millisecond)

	old, _ := reg.Resolve("expiring")
	old.Append(chat.RoleUser, "hello")

	time.Sleep(20 * time.Millisecond)

	fresh, isNew := reg.Resolve("expiring")
	if !isNew {
		t.Fatal("expected a new session after expiry")
	}
	if fresh == old {
		t.Fatal("expected a different session instance after expiry")
	}
	if fresh.Len() != 0 {
		t.Fatalf("expected an empty transcript, got %d turns", fresh.Len())
	}
}

func TestGetDoesNotCreate(t *testing.T) {
	reg := session.NewRegistry(time.Hour)

	if _, ok := reg.Get("missing"); ok {
		t.Fatal("expected no session for an unknown id")
	}
	if reg.Len() != 0 {
		t.Fatal("Get must not create sessions")
	}

	created, _ := reg.Resolve("")
	got, ok := reg.Get(created.ID)
	if !ok || got != created {
		t.Fatal("expected Get to return the registered session")
	}
}
