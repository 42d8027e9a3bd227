package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reminders/internal/auth"
	"reminders/internal/config"
	"reminders/internal/db/dbtest"
	httpx "reminders/internal/http"
	"reminders/internal/jobs"
	"reminders/internal/llm"
	"reminders/internal/reminder"
	"reminders/internal/syncer"
	"reminders/internal/voice"
)

const token = "test-token"

type fakeTranscriber struct{ got string }

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	b, _ := io.ReadAll(audio)
	f.got = string(b)
	return "call mom tomorrow", nil
}

type app struct {
	h     http.Handler
	db    *gorm.DB
	clock clock.FakeClock
	tr    *fakeTranscriber
}

func newApp(t *testing.T, opts ...func(*httpx.Deps)) app {
	t.Helper()
	gdb := dbtest.Open(t)
	clk := clock.NewFake()
	clk.Set(time.Date(2025, 11, 9, 12, 0, 0, 0, time.UTC))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var cfg config.Config
	cfg.Auth.APIToken = token
	cfg.Recurrence.HorizonDays = 90
	cfg.Recurrence.MaxHorizonDays = 3650

	tr := &fakeTranscriber{}
	d := httpx.Deps{
		DB:          gdb,
		Clock:       clk,
		Log:         log,
		JWT:         auth.NewJWT("jwt-secret", time.Hour, clk),
		Transcriber: tr,
	}
	for _, o := range opts {
		o(&d)
	}
	return app{h: httpx.NewRouter(cfg, d), db: gdb, clock: clk, tr: tr}
}

func (a app) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth_NoAuth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "connected", body["database"])
	require.Equal(t, httpx.Version, body["version"])
}

func TestAuth_RejectsMissingAndWrongToken(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/reminders", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, decodeBody[map[string]string](t, rec)["detail"], "authorization")

	rec = a.do(t, http.MethodGet, "/reminders", "nope", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReminders_CRUD(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/reminders", token, map[string]any{
		"text":     "Buy milk",
		"due_date": "2025-11-10",
		"due_time": "09:00",
		"priority": "important",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[reminder.Reminder](t, rec)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "09:00:00", *created.DueTime)
	require.Equal(t, reminder.StatusPending, created.Status)

	rec = a.do(t, http.MethodGet, "/reminders/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPatch, "/reminders/"+created.ID, token, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[reminder.Reminder](t, rec)
	require.Equal(t, reminder.StatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	rec = a.do(t, http.MethodPatch, "/reminders/"+created.ID, token, map[string]any{"location_radius": 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotEmpty(t, decodeBody[map[string]string](t, rec)["detail"])

	rec = a.do(t, http.MethodDelete, "/reminders/"+created.ID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/reminders/"+created.ID, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodDelete, "/reminders/"+created.ID, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReminders_CreateRequiresText(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/reminders", token, map[string]any{"priority": "urgent"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/reminders", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	a.h.ServeHTTP(out, req)
	require.Equal(t, http.StatusBadRequest, out.Code)
}

func TestReminders_CreateDuplicateIDConflicts(t *testing.T) {
	a := newApp(t)
	body := map[string]any{"id": "client-1", "text": "first"}

	rec := a.do(t, http.MethodPost, "/reminders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body["text"] = "second"
	rec = a.do(t, http.MethodPost, "/reminders", token, body)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	require.Contains(t, decodeBody[map[string]string](t, rec)["detail"], "already exists")

	rec = a.do(t, http.MethodGet, "/reminders/client-1", token, nil)
	require.Equal(t, "first", decodeBody[reminder.Reminder](t, rec).Text)
}

func TestReminders_ListEnvelope(t *testing.T) {
	a := newApp(t)
	for _, text := range []string{"a", "b", "c"} {
		rec := a.do(t, http.MethodPost, "/reminders", token, map[string]any{"text": text, "category": "Work"})
		require.Equal(t, http.StatusCreated, rec.Code)
		a.clock.Add(time.Second)
	}

	rec := a.do(t, http.MethodGet, "/reminders?category=Work&limit=2&offset=0", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data       []reminder.Reminder `json:"data"`
		Pagination struct {
			Total    int `json:"total"`
			Limit    int `json:"limit"`
			Offset   int `json:"offset"`
			Returned int `json:"returned"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, "c", body.Data[0].Text)
	require.Equal(t, 3, body.Pagination.Total)
	require.Equal(t, 2, body.Pagination.Limit)
	require.Equal(t, 2, body.Pagination.Returned)

	for _, q := range []string{"limit=0", "limit=1001", "offset=-1", "status=done", "priority=meh"} {
		rec = a.do(t, http.MethodGet, "/reminders?"+q, token, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestReminders_CreateWithRecurrence(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/reminders", token, map[string]any{
		"text":     "Standup",
		"due_date": "2025-11-10",
		"recurrence_pattern": map[string]any{
			"frequency": "daily",
			"interval":  2,
			"end_count": 3,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "3", rec.Header().Get("X-Instances-Created"))

	first := decodeBody[reminder.Reminder](t, rec)
	require.Equal(t, "2025-11-10", *first.DueDate)
	require.NotNil(t, first.RecurrenceID)

	rec = a.do(t, http.MethodGet, "/recurrence-patterns/"+*first.RecurrenceID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodDelete, "/recurrence-patterns/"+*first.RecurrenceID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Reminders-Unlinked"))

	rec = a.do(t, http.MethodGet, "/reminders/"+first.ID, token, nil)
	require.Nil(t, decodeBody[reminder.Reminder](t, rec).RecurrenceID)

	rec = a.do(t, http.MethodPost, "/reminders", token, map[string]any{
		"text":               "bad",
		"recurrence_pattern": map[string]any{"frequency": "hourly"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatterns_CreateAndExpand(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/reminders", token, map[string]any{"text": "Water plants", "due_date": "2025-11-09"})
	require.Equal(t, http.StatusCreated, rec.Code)
	base := decodeBody[reminder.Reminder](t, rec)

	rec = a.do(t, http.MethodPost, "/recurrence-patterns", token, map[string]any{
		"frequency":    "weekly",
		"days_of_week": []int{0, 3},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pattern := decodeBody[map[string]any](t, rec)
	pid := pattern["id"].(string)

	rec = a.do(t, http.MethodPatch, "/recurrence-patterns/"+pid, token, map[string]any{"interval": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/recurrence-patterns/"+pid+"/expand", token, map[string]any{
		"reminder_id":  base.ID,
		"horizon_days": 14,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Created   int                 `json:"created"`
		Reminders []reminder.Reminder `json:"reminders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, len(out.Reminders), out.Created)
	require.NotZero(t, out.Created)
	for _, r := range out.Reminders {
		require.Equal(t, pid, *r.RecurrenceID)
	}

	rec = a.do(t, http.MethodPost, "/recurrence-patterns/"+pid+"/expand", token, map[string]any{
		"reminder_id":  base.ID,
		"horizon_days": -1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/recurrence-patterns/missing", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReminders_NearLocation(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/reminders", token, map[string]any{
		"text": "Pick up parcel", "location_lat": 37.7749, "location_lng": -122.4194,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/reminders/near-location?lat=37.7750&lng=-122.4195", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[[]reminder.Located](t, rec)
	require.Len(t, got, 1)
	require.Less(t, got[0].Distance, 50.0)

	rec = a.do(t, http.MethodGet, "/reminders/near-location?lat=0&lng=0", token, nil)
	require.Equal(t, "[]\n", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/reminders/near-location?lat=91&lng=0", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReminders_SnoozeSchedulesWake(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/reminders", token, map[string]any{"text": "nap"})
	created := decodeBody[reminder.Reminder](t, rec)

	until := a.clock.Now().Add(time.Hour)
	rec = a.do(t, http.MethodPatch, "/reminders/"+created.ID, token, map[string]any{
		"status": "snoozed", "snoozed_until": until,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	pending := func() int64 {
		var n int64
		require.NoError(t, a.db.Model(&jobs.Job{}).
			Where("reminder_id = ? AND status = ?", created.ID, jobs.StatusPending).Count(&n).Error)
		return n
	}
	require.EqualValues(t, 1, pending())

	rec = a.do(t, http.MethodPatch, "/reminders/"+created.ID, token, map[string]any{"status": "pending"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, pending())
}

func TestSync_FirstSyncAndConflict(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/reminders", token, map[string]any{"text": "server side"})
	server := decodeBody[reminder.Reminder](t, rec)

	rec = a.do(t, http.MethodPost, "/sync", token, map[string]any{
		"client_id": "phone",
		"changes": []map[string]any{
			{"id": "c-1", "action": "create", "data": map[string]any{"text": "from phone"}, "updated_at": a.clock.Now()},
			{"id": server.ID, "action": "update", "data": map[string]any{"text": "stale"}, "updated_at": a.clock.Now().Add(-time.Hour)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[syncer.Result](t, rec)
	require.Equal(t, 1, res.AppliedCount)
	require.Len(t, res.Conflicts, 1)
	require.Equal(t, syncer.ServerWins, res.Conflicts[0].Resolution)
	require.Empty(t, res.ServerChanges)

	rec = a.do(t, http.MethodGet, "/reminders/"+server.ID, token, nil)
	require.Equal(t, "server side", decodeBody[reminder.Reminder](t, rec).Text)

	rec = a.do(t, http.MethodPost, "/sync", token, map[string]any{"client_id": "tablet"})
	res = decodeBody[syncer.Result](t, rec)
	require.Len(t, res.ServerChanges, 2)
}

func TestAuthToken_DeviceTokens(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/auth/token", token, map[string]any{"client_id": "phone"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	device := decodeBody[map[string]any](t, rec)["token"].(string)

	rec = a.do(t, http.MethodGet, "/reminders", device, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/auth/token", device, map[string]any{"client_id": "other"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/auth/token", token, map[string]any{"client_id": " "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoice_ParseThroughOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{
				"role":    "assistant",
				"content": `{"text":"call mom","due_date":"2025-11-10","priority":"urgent","confidence":0.8}`,
			},
			"done": true,
		})
	}))
	defer srv.Close()

	a := newApp(t, func(d *httpx.Deps) {
		d.Parser = voice.NewParser(llm.NewOllama(srv.URL, time.Second), "llama3.2:3b", 0, d.Clock, d.Log)
	})

	rec := a.do(t, http.MethodPost, "/voice/parse", token, map[string]any{"text": "call mom tomorrow, urgent"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[voice.Parsed](t, rec)
	require.Equal(t, "call mom", got.Text)
	require.Equal(t, "2025-11-10", *got.DueDate)
	require.Equal(t, "urgent", *got.Priority)
	require.Equal(t, voice.ModeLocal, got.ParseMode)

	rec = a.do(t, http.MethodPost, "/voice/parse", token, map[string]any{"text": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoice_ParseWithoutProviderDegrades(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/voice/parse", token, map[string]any{"text": "buy milk"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[voice.Parsed](t, rec)
	require.Equal(t, "buy milk", got.Text)
	require.Zero(t, got.Confidence)
}

func TestVoice_Transcribe(t *testing.T) {
	a := newApp(t)

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	fw, err := mp.CreateFormFile("audio", "clip.webm")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("fake-audio"))
	require.NoError(t, mp.Close())

	req := httptest.NewRequest(http.MethodPost, "/voice/transcribe", &buf)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "call mom tomorrow", decodeBody[map[string]string](t, rec)["text"])
	require.Equal(t, "fake-audio", a.tr.got)

	rec = a.do(t, http.MethodPost, "/voice/transcribe", token, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoice_TranscribeUnavailable(t *testing.T) {
	a := newApp(t, func(d *httpx.Deps) {
		d.Transcriber = &voice.Whisper{Bin: "no-such-whisper", Model: "missing.bin"}
	})

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	fw, err := mp.CreateFormFile("audio", "clip.wav")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("RIFF"))
	require.NoError(t, mp.Close())

	req := httptest.NewRequest(http.MethodPost, "/voice/transcribe", &buf)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
