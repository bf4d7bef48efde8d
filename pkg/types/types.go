// Package types defines the shared domain types used across all murmur
// packages.
//
// These types form the lingua franca between the recording layer, the
// external-service clients, and the listening loop. Each package defines its
// own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import (
	"strings"
	"time"
)

// Slot identifies one of the two fixed safe-word identities.
type Slot string

const (
	// SlotRedFlag is the "uncomfortable but not in immediate danger" word.
	SlotRedFlag Slot = "redFlag"

	// SlotEmergency is the "urgent danger, help needed now" word.
	SlotEmergency Slot = "emergency"
)

// IsValid reports whether s is a recognised safe-word slot.
func (s Slot) IsValid() bool {
	return s == SlotRedFlag || s == SlotEmergency
}

// String returns the wire name of the slot, which doubles as the trigger
// priority tag sent to the dispatch service.
func (s Slot) String() string { return string(s) }

// Slots lists both safe-word slots in precedence order: Emergency is always
// tested first when matching a transcript.
func Slots() []Slot { return []Slot{SlotEmergency, SlotRedFlag} }

// ContactPriority returns the contact priority tag that matches a triggered
// slot.
func (s Slot) ContactPriority() Priority {
	if s == SlotEmergency {
		return PriorityEmergency
	}
	return PriorityRedFlag
}

// SafeWord is the persisted state of one safe-word slot.
type SafeWord struct {
	// Slot identifies which safe word this is.
	Slot Slot

	// Phrase is the last transcribed text for this slot. Empty means unset.
	Phrase string

	// AudioRef is the path of the stored audio sample. Empty means unset.
	AudioRef string
}

// Usable reports whether the safe word can drive detection: both the phrase
// and the audio reference must be present, and the phrase must be non-empty
// after trigger-character stripping.
func (w SafeWord) Usable() bool {
	return w.AudioRef != "" && strings.TrimSpace(StripTriggerChars(w.Phrase)) != ""
}

// triggerCharReplacer removes the punctuation the STT service appends to
// short utterances ("Pineapple!" → "Pineapple").
var triggerCharReplacer = strings.NewReplacer("!", "", ".", "", ",", "")

// StripTriggerChars removes the characters `!`, `.` and `,` from s.
func StripTriggerChars(s string) string {
	return triggerCharReplacer.Replace(s)
}

// NormalizePhrase prepares STT output for safe-word containment matching:
// trigger characters stripped, surrounding whitespace trimmed, lowercased.
func NormalizePhrase(s string) string {
	return strings.ToLower(strings.TrimSpace(StripTriggerChars(s)))
}

// Priority is a contact's eligibility tag. It determines which trigger
// notifies the contact.
type Priority string

const (
	PriorityUnset     Priority = ""
	PriorityRedFlag   Priority = "Red Flag"
	PriorityEmergency Priority = "Emergency"
)

// Contact is a notification recipient. Contact management is external to the
// core; the listening loop only ever reads the filtered subset whose Priority
// matches a trigger.
type Contact struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PhoneNumber string   `json:"phoneNumber"`
	Priority    Priority `json:"priority"`
}

// DigitsOnly strips every non-digit rune from a phone number. The dispatch
// service builds carrier e-mail gateways from the raw number, so formatting
// characters must never reach it.
func DigitsOnly(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Location is a sampled device position. A nil *Location means location
// tracking is disabled or no fix has been obtained yet.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Clip is a finalised recording produced by the recording session manager.
type Clip struct {
	// ID uniquely identifies the clip.
	ID string

	// Path is the location of the WAV file on disk.
	Path string

	// Duration is the recorded length.
	Duration time.Duration
}
