package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/events"
	"github.com/hazz-dev/dnsswitch/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func statusEvent(primary, secondary string) events.Event {
	return events.Event{
		Kind:      events.StatusChanged,
		Text:      fmt.Sprintf("Primary: %s | Secondary: %s", primary, secondary),
		Primary:   primary,
		Secondary: secondary,
		At:        time.Now().UTC(),
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := openTestDB(t)
	// If we can insert, schema is correct.
	err := db.InsertEvent(context.Background(), events.Event{Kind: events.LogLine, Text: "Monitoring started"})
	if err != nil {
		t.Fatalf("InsertEvent after Open: %v", err)
	}
}

func TestInsertEvent_IgnoresResults(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.InsertEvent(ctx, events.Event{Kind: events.ResultUpdated, Endpoint: "1.1.1.1", LatencyText: "12"})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	entries, err := db.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected probe results not to be journaled, got %+v", entries)
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		if err := db.InsertEvent(ctx, events.Event{Kind: events.LogLine, Text: text}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "third" || entries[1].Text != "second" {
		t.Errorf("unexpected order: %q, %q", entries[0].Text, entries[1].Text)
	}
	if entries[0].Kind != "log" {
		t.Errorf("expected kind log, got %q", entries[0].Kind)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestLastStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got, err := db.LastStatus(ctx)
	if err != nil {
		t.Fatalf("LastStatus: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil before any status, got %+v", got)
	}

	db.InsertEvent(ctx, statusEvent("1.1.1.1", "8.8.8.8"))
	db.InsertEvent(ctx, statusEvent("9.9.9.9", "149.112.112.112"))
	db.InsertEvent(ctx, events.Event{Kind: events.LogLine, Text: "Monitoring stopped"})

	got, err = db.LastStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a status entry, got nil")
	}
	if got.Primary != "9.9.9.9" || got.Secondary != "149.112.112.112" {
		t.Errorf("unexpected last status: %+v", got)
	}
}

func TestPrune(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		db.InsertEvent(ctx, events.Event{Kind: events.LogLine, Text: fmt.Sprintf("line %d", i)})
	}

	n, err := db.Prune(ctx, 3)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7 rows removed, got %d", n)
	}
	entries, _ := db.Recent(ctx, 100)
	if len(entries) != 3 || entries[0].Text != "line 9" {
		t.Errorf("unexpected remaining entries: %+v", entries)
	}
}
