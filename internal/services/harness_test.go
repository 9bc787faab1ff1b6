package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/config"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/db"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/metrics"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/storage"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/worker"
)

const glucoseReply = "```json\n" +
	`[{"name":"血糖","value":"5.6","unit":"mmol/L","reference_range":"3.9-6.1","is_abnormal":false},` +
	`{"name":"总胆固醇","value":"6.2","unit":"mmol/L","reference_range":"<5.2","is_abnormal":true}]` +
	"\n```"

// fakeAI stands in for the completion service. Vision calls get
// visionReply unless the body contains one of the failing markers;
// streaming calls get the configured chunks.
type fakeAI struct {
	mu           sync.Mutex
	failMarkers  []string
	visionReply  string
	streamStatus int
	chunks       []string
	streamBodies []streamRequest

	visionAt   []time.Time
	holdMarker string
	held       chan struct{}
}

type streamRequest struct {
	MaxTokens int `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func (f *fakeAI) failOn(markers ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMarkers = markers
}

// holdOn makes the vision request carrying m hang until the caller gives
// up. The returned channel fires when that request arrives.
func (f *fakeAI) holdOn(m string) <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdMarker = m
	f.held = make(chan struct{}, 1)
	return f.held
}

func (f *fakeAI) visionTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.visionAt...)
}

func (f *fakeAI) streamed() []streamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]streamRequest(nil), f.streamBodies...)
}

func (f *fakeAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	var probe struct {
		Stream bool `json:"stream"`
	}
	_ = json.Unmarshal(body, &probe)

	f.mu.Lock()
	if !probe.Stream {
		f.visionAt = append(f.visionAt, time.Now())
		if f.holdMarker != "" && strings.Contains(string(body), f.holdMarker) {
			held := f.held
			f.mu.Unlock()
			select {
			case held <- struct{}{}:
			default:
			}
			select {
			case <-r.Context().Done():
			case <-time.After(10 * time.Second):
			}
			return
		}
	}
	defer f.mu.Unlock()

	if !probe.Stream {
		for _, m := range f.failMarkers {
			if strings.Contains(string(body), m) {
				http.Error(w, `{"error":{"message":"upstream exploded"}}`, http.StatusInternalServerError)
				return
			}
		}
		reply, _ := json.Marshal(f.visionReply)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":%s}}]}`, reply)
		return
	}

	var req streamRequest
	_ = json.Unmarshal(body, &req)
	f.streamBodies = append(f.streamBodies, req)

	if f.streamStatus != 0 && f.streamStatus != http.StatusOK {
		http.Error(w, "bad gateway", f.streamStatus)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range f.chunks {
		frame, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"delta": map[string]string{"content": c}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", frame)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

type harness struct {
	svc   *Services
	deps  *Deps
	bus   *events.Bus
	ai    *fakeAI
	files storage.Storage
}

// newHarness wires the services on a temporary database and data root. With
// withAI set, the stored settings point at a fake completion service.
func newHarness(t *testing.T, withAI bool) *harness {
	t.Helper()
	ctx := context.Background()
	logger := utils.NewNopLogger()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, db.RunMigrations(dbPath))
	conn, err := db.NewSQLiteDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	h := &harness{bus: events.NewBus(512), files: files}
	queue := worker.NewQueue(16, 1, logger, worker.Hooks{})
	h.deps = &Deps{
		Store:   repository.NewStore(conn),
		Storage: files,
		Events:  h.bus,
		Queue:   queue,
		Metrics: metrics.New(),
		Config:  &config.Config{MaxUploadSize: 1 << 20, AITimeout: 5 * time.Second},
		Logger:  logger,
	}
	h.svc = New(h.deps)

	if withAI {
		h.ai = &fakeAI{visionReply: glucoseReply, chunks: []string{"He", "llo"}}
		srv := httptest.NewServer(h.ai)
		t.Cleanup(srv.Close)
		require.NoError(t, h.svc.Settings.Save(ctx, KeyAPIURL, srv.URL))
		require.NoError(t, h.svc.Settings.Save(ctx, KeyAPIKey, "sk-test"))
		require.NoError(t, h.svc.Settings.Save(ctx, KeyDefaultModel, "test-model"))
	}

	// Registered last so it runs before the fake server closes.
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		queue.Stop(stopCtx)
	})
	return h
}

type seeded struct {
	project   *models.Project
	indicator *models.Indicator
	record    *models.CheckupRecord
	files     []models.CheckupFile
}

// seed creates one project with a glucose indicator and a record holding
// the named files.
func (h *harness) seed(t *testing.T, filenames ...string) seeded {
	t.Helper()
	ctx := context.Background()
	var s seeded
	var err error

	s.project, err = h.svc.Projects.Create(ctx, &models.CreateProjectRequest{Name: "血常规"})
	require.NoError(t, err)
	s.indicator, err = h.svc.Indicators.Create(ctx, &models.CreateIndicatorRequest{
		ProjectID: s.project.ID, Name: "血糖(空腹)", Unit: "mmol/L",
	})
	require.NoError(t, err)
	s.record, err = h.svc.Records.Create(ctx, &models.CreateRecordRequest{CheckupDate: "2024-05-01"})
	require.NoError(t, err)

	if len(filenames) == 0 {
		return s
	}
	req := &models.UploadRequest{RecordID: s.record.ID}
	for _, name := range filenames {
		req.Files = append(req.Files, models.UploadFile{
			ProjectID: s.project.ID, Filename: name, Data: []byte("report-" + name),
		})
	}
	_, err = h.svc.Files.Upload(ctx, req)
	require.NoError(t, err)

	s.files, err = h.svc.Files.List(ctx, s.record.ID)
	require.NoError(t, err)
	return s
}

// marker is what a vision request carrying the named seeded file contains.
func marker(filename string) string {
	return base64.StdEncoding.EncodeToString([]byte("report-" + filename))
}

// collect reads events until one named until arrives.
func collect(t *testing.T, ch <-chan events.Event, until string) []events.Event {
	t.Helper()
	timeout := time.After(10 * time.Second)
	var got []events.Event
	for {
		select {
		case ev := <-ch:
			got = append(got, ev)
			if ev.Name == until {
				return got
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", until)
			return nil
		}
	}
}

func named(evs []events.Event, name string) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func statusCode(t *testing.T, err error) int {
	t.Helper()
	appErr, ok := utils.AsAppError(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	return appErr.StatusCode
}
