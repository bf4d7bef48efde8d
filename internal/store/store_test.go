package store

import (
	"context"
	"errors"
	"testing"

	"github.com/murmur-app/murmur/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSafeWordRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SafeWord(ctx, types.SlotRedFlag); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty slot: got err %v, want ErrNotFound", err)
	}

	want := types.SafeWord{
		Slot:     types.SlotRedFlag,
		Phrase:   "Pineapple",
		AudioRef: "clips/abc.wav",
	}
	if err := s.SetSafeWord(ctx, want); err != nil {
		t.Fatalf("SetSafeWord: %v", err)
	}

	got, err := s.SafeWord(ctx, types.SlotRedFlag)
	if err != nil {
		t.Fatalf("SafeWord: %v", err)
	}
	if got != want {
		t.Errorf("SafeWord = %+v, want %+v", got, want)
	}

	// Overwrite replaces, not duplicates.
	want.Phrase = "Dragonfruit"
	if err := s.SetSafeWord(ctx, want); err != nil {
		t.Fatalf("SetSafeWord overwrite: %v", err)
	}
	got, err = s.SafeWord(ctx, types.SlotRedFlag)
	if err != nil {
		t.Fatalf("SafeWord after overwrite: %v", err)
	}
	if got.Phrase != "Dragonfruit" {
		t.Errorf("phrase after overwrite = %q, want %q", got.Phrase, "Dragonfruit")
	}
}

func TestClearSafeWord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sw := types.SafeWord{Slot: types.SlotEmergency, Phrase: "Mayday", AudioRef: "clips/x.wav"}
	if err := s.SetSafeWord(ctx, sw); err != nil {
		t.Fatalf("SetSafeWord: %v", err)
	}
	if err := s.ClearSafeWord(ctx, types.SlotEmergency); err != nil {
		t.Fatalf("ClearSafeWord: %v", err)
	}
	if _, err := s.SafeWord(ctx, types.SlotEmergency); !errors.Is(err, ErrNotFound) {
		t.Errorf("after clear: got err %v, want ErrNotFound", err)
	}

	// Clearing an already-empty slot succeeds.
	if err := s.ClearSafeWord(ctx, types.SlotEmergency); err != nil {
		t.Errorf("ClearSafeWord on empty slot: %v", err)
	}
}

func TestSafeWordsPrecedenceOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetSafeWord(ctx, types.SafeWord{Slot: types.SlotRedFlag, Phrase: "Amber"}); err != nil {
		t.Fatalf("SetSafeWord: %v", err)
	}
	if err := s.SetSafeWord(ctx, types.SafeWord{Slot: types.SlotEmergency, Phrase: "Crimson"}); err != nil {
		t.Fatalf("SetSafeWord: %v", err)
	}

	words, err := s.SafeWords(ctx)
	if err != nil {
		t.Fatalf("SafeWords: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("got %d safe words, want 2", len(words))
	}
	if words[0].Slot != types.SlotEmergency || words[1].Slot != types.SlotRedFlag {
		t.Errorf("order = [%s %s], want [emergency redFlag]", words[0].Slot, words[1].Slot)
	}
}

func TestVoicePrint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.VoicePrint(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unenrolled: got err %v, want ErrNotFound", err)
	}
	if err := s.SetVoicePrint(ctx, "vector-123"); err != nil {
		t.Fatalf("SetVoicePrint: %v", err)
	}
	ref, err := s.VoicePrint(ctx)
	if err != nil {
		t.Fatalf("VoicePrint: %v", err)
	}
	if ref != "vector-123" {
		t.Errorf("VoicePrint = %q, want %q", ref, "vector-123")
	}
	if err := s.ClearVoicePrint(ctx); err != nil {
		t.Fatalf("ClearVoicePrint: %v", err)
	}
	if _, err := s.VoicePrint(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("after clear: got err %v, want ErrNotFound", err)
	}
}

func TestContacts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	has, err := s.HasPrioritizedContact(ctx)
	if err != nil {
		t.Fatalf("HasPrioritizedContact: %v", err)
	}
	if has {
		t.Error("empty store reports a prioritized contact")
	}

	contacts := []types.Contact{
		{ID: "c1", Name: "Ada", PhoneNumber: "+1 (555) 010-0001", Priority: types.PriorityRedFlag},
		{ID: "c2", Name: "Ben", PhoneNumber: "555-010-0002", Priority: types.PriorityEmergency},
		{ID: "c3", Name: "Cleo", PhoneNumber: "5550100003"},
	}
	for _, c := range contacts {
		if err := s.PutContact(ctx, c); err != nil {
			t.Fatalf("PutContact(%s): %v", c.ID, err)
		}
	}

	red, err := s.ContactsByPriority(ctx, types.PriorityRedFlag)
	if err != nil {
		t.Fatalf("ContactsByPriority: %v", err)
	}
	if len(red) != 1 || red[0].ID != "c1" {
		t.Errorf("red flag contacts = %+v, want only c1", red)
	}

	has, err = s.HasPrioritizedContact(ctx)
	if err != nil {
		t.Fatalf("HasPrioritizedContact: %v", err)
	}
	if !has {
		t.Error("expected a prioritized contact after inserts")
	}

	if err := s.DeleteContact(ctx, "c2"); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	all, err := s.Contacts(ctx)
	if err != nil {
		t.Fatalf("Contacts: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d contacts after delete, want 2", len(all))
	}
}
