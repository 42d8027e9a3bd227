package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"reminders/internal/voice"
)

const maxAudioBytes = 25 << 20

type VoiceHandler struct {
	Parser      *voice.Parser
	Transcriber voice.Transcriber
	Log         *slog.Logger
}

type parseReq struct {
	Text string `json:"text"`
}

func (h *VoiceHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseReq
	if err := decode(r, &req); err != nil {
		Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, "text is required", http.StatusBadRequest)
		return
	}

	out, err := h.Parser.Parse(r.Context(), req.Text)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, out, http.StatusOK)
}

func (h *VoiceHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.Transcriber == nil {
		Error(w, "transcription is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	f, hdr, err := r.FormFile("audio")
	if err != nil {
		Error(w, "multipart field 'audio' is required", http.StatusBadRequest)
		return
	}
	defer f.Close()

	text, err := h.Transcriber.Transcribe(r.Context(), f, hdr.Filename)
	switch {
	case errors.Is(err, voice.ErrNoSpeech):
		Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, map[string]string{"text": text}, http.StatusOK)
}
