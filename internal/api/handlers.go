package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/murmur-app/murmur/internal/record"
	"github.com/murmur-app/murmur/pkg/types"
)

// statusResponse is the body of GET /v1/status.
type statusResponse struct {
	Listening bool             `json:"listening"`
	Recording *recordingStatus `json:"recording,omitempty"`
	SafeWords []safeWordInfo   `json:"safeWords"`
	Enrolled  bool             `json:"enrolled"`
}

type recordingStatus struct {
	Kind        string     `json:"kind"`
	Slot        types.Slot `json:"slot,omitempty"`
	PhraseIndex int        `json:"phraseIndex,omitempty"`
}

type safeWordInfo struct {
	Slot   types.Slot `json:"slot"`
	Phrase string     `json:"phrase"`
	Usable bool       `json:"usable"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := statusResponse{
		Listening: s.coord.IsEnabled(),
		SafeWords: []safeWordInfo{},
	}

	if purpose, active := s.rec.Active(); active {
		resp.Recording = &recordingStatus{
			Kind:        string(purpose.Kind),
			Slot:        purpose.Slot,
			PhraseIndex: purpose.PhraseIndex,
		}
	}

	words, err := s.store.SafeWords(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, sw := range words {
		resp.SafeWords = append(resp.SafeWords, safeWordInfo{
			Slot:   sw.Slot,
			Phrase: sw.Phrase,
			Usable: sw.Usable(),
		})
	}

	if _, err := s.store.VoicePrint(ctx); err == nil {
		resp.Enrolled = true
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Enable(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"listening": true})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.coord.Disable(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"listening": false})
}

func (s *Server) handleListSafeWords(w http.ResponseWriter, r *http.Request) {
	words, err := s.store.SafeWords(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	infos := make([]safeWordInfo, 0, len(words))
	for _, sw := range words {
		infos = append(infos, safeWordInfo{Slot: sw.Slot, Phrase: sw.Phrase, Usable: sw.Usable()})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown safe-word slot"})
		return
	}
	if err := s.capture.StartCapture(r.Context(), slot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"capturing": string(slot)})
}

// captureStopResponse is the body of POST /v1/safewords/capture/stop. Saved
// is false when the recording could not be transcribed; the slot then keeps
// its previous value.
type captureStopResponse struct {
	Saved  bool       `json:"saved"`
	Slot   types.Slot `json:"slot,omitempty"`
	Phrase string     `json:"phrase,omitempty"`
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	sw, saved, err := s.capture.StopCapture(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := captureStopResponse{Saved: saved}
	if saved {
		resp.Slot = sw.Slot
		resp.Phrase = sw.Phrase
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveSafeWord(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown safe-word slot"})
		return
	}
	if err := s.capture.RemoveSafeWord(r.Context(), slot); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnrollStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.enroll.Status(r.Context()))
}

func (s *Server) handleEnrollBegin(w http.ResponseWriter, r *http.Request) {
	s.enroll.Begin(r.Context())
	writeJSON(w, http.StatusOK, s.enroll.Status(r.Context()))
}

func (s *Server) handleEnrollRecord(w http.ResponseWriter, r *http.Request) {
	status, err := s.enroll.RecordCurrentPhrase(r.Context())
	if err != nil {
		if errors.Is(err, record.ErrSessionActive) {
			writeError(w, err)
			return
		}
		// Upload failures reset the flow; report both the error and the
		// fresh status so the client can restart.
		writeJSON(w, http.StatusBadGateway, struct {
			Error  string `json:"error"`
			Status any    `json:"status"`
		}{Error: err.Error(), Status: status})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.store.Contacts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if contacts == nil {
		contacts = []types.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handlePutContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var c types.Contact
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid contact body: " + err.Error()})
		return
	}
	c.ID = id
	if c.Name == "" || c.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "contact needs name and phoneNumber"})
		return
	}
	switch c.Priority {
	case types.PriorityUnset, types.PriorityRedFlag, types.PriorityEmergency:
	default:
		writeJSON(w, http.StatusBadRequest,
			errorBody{Error: fmt.Sprintf("unknown priority %q", c.Priority)})
		return
	}

	if err := s.store.PutContact(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteContact(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
