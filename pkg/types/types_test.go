package types

import "testing"

func TestStripTriggerChars(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Pineapple!", "Pineapple"},
		{"Pineapple.", "Pineapple"},
		{"red, flag", "red flag"},
		{"!.,", ""},
		{"no punctuation", "no punctuation"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripTriggerChars(tt.in); got != tt.want {
			t.Errorf("StripTriggerChars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePhrase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{" Pineapple! ", "pineapple"},
		{"HELP ME NOW.", "help me now"},
		{"  !.,  ", ""},
		{"Mixed, Case. Words!", "mixed case words"},
	}
	for _, tt := range tests {
		if got := NormalizePhrase(tt.in); got != tt.want {
			t.Errorf("NormalizePhrase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"+1 (555) 123-4567", "15551234567"},
		{"555.987.6543", "5559876543"},
		{"5551234567", "5551234567"},
		{"no digits", ""},
	}
	for _, tt := range tests {
		if got := DigitsOnly(tt.in); got != tt.want {
			t.Errorf("DigitsOnly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlotValidity(t *testing.T) {
	if !SlotRedFlag.IsValid() || !SlotEmergency.IsValid() {
		t.Error("built-in slots reported invalid")
	}
	if Slot("panic").IsValid() {
		t.Error("unknown slot reported valid")
	}
}

func TestSlotsPrecedence(t *testing.T) {
	got := Slots()
	if len(got) != 2 || got[0] != SlotEmergency || got[1] != SlotRedFlag {
		t.Errorf("Slots() = %v, want emergency before redFlag", got)
	}
}

func TestContactPriority(t *testing.T) {
	if got := SlotEmergency.ContactPriority(); got != PriorityEmergency {
		t.Errorf("emergency slot priority = %q", got)
	}
	if got := SlotRedFlag.ContactPriority(); got != PriorityRedFlag {
		t.Errorf("redFlag slot priority = %q", got)
	}
}

func TestSafeWordUsable(t *testing.T) {
	tests := []struct {
		name string
		word SafeWord
		want bool
	}{
		{"complete", SafeWord{Slot: SlotRedFlag, Phrase: "pineapple", AudioRef: "a.wav"}, true},
		{"no audio", SafeWord{Slot: SlotRedFlag, Phrase: "pineapple"}, false},
		{"no phrase", SafeWord{Slot: SlotRedFlag, AudioRef: "a.wav"}, false},
		{"phrase is only punctuation", SafeWord{Slot: SlotRedFlag, Phrase: "!.,", AudioRef: "a.wav"}, false},
		{"unset", SafeWord{Slot: SlotEmergency}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.word.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}
