package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/lifecycle"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

func runBatch(t *testing.T, h *harness, recordID string) []events.Event {
	t.Helper()
	ch, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	resp, err := h.svc.OCR.Start(context.Background(), recordID)
	require.NoError(t, err)
	assert.Equal(t, recordID, resp.ID)
	return collect(t, ch, events.OCRComplete)
}

func statusByFile(results []models.OcrResult) map[string]string {
	m := make(map[string]string, len(results))
	for _, r := range results {
		m[r.FileID] = r.Status
	}
	return m
}

func TestOCRBatch_OneFileFails(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png", "b.png", "c.png")
	h.ai.failOn(marker("b.png"))
	ctx := context.Background()

	rec, err := h.svc.Records.Get(ctx, s.record.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.PendingOCR, rec.Status)

	evs := runBatch(t, h, s.record.ID)

	outcome, ok := evs[len(evs)-1].Payload.(models.BatchOutcome)
	require.True(t, ok)
	assert.Equal(t, 3, outcome.Total)
	assert.Equal(t, 2, outcome.Success)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "b.png: ")

	var processed []string
	for _, ev := range named(evs, events.OCRProgress) {
		p := ev.Payload.(events.Progress)
		if p.Phase == PhaseProcessing {
			processed = append(processed, p.CurrentFile)
		}
	}
	var order []string
	for _, f := range s.files {
		order = append(order, f.OriginalFilename)
	}
	assert.Equal(t, order, processed)

	results, err := h.svc.OCR.Results(ctx, s.record.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	byFile := statusByFile(results)
	for _, f := range s.files {
		want := models.StatusSuccess
		if f.OriginalFilename == "b.png" {
			want = models.StatusFailed
		}
		assert.Equal(t, want, byFile[f.ID], f.OriginalFilename)
	}

	st, err := h.svc.OCR.Status(ctx, s.record.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.OCRDone), st.RecordStatus)
	assert.Equal(t, 3, st.TotalFiles)
	assert.Equal(t, 2, st.SuccessOcr)
	assert.Equal(t, 1, st.FailedOcr)

	trend, err := h.svc.Trends.Project(ctx, s.project.ID)
	require.NoError(t, err)
	require.Len(t, trend.Indicators, 1)
	points := trend.Indicators[0].Points
	require.Len(t, points, 2)
	require.NotNil(t, points[0].Value)
	assert.InDelta(t, 5.6, *points[0].Value, 1e-9)
	assert.Equal(t, "2024-05-01", points[0].CheckupDate)
}

func TestOCRBatch_AllFail(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png", "b.png")
	h.ai.failOn(marker("a.png"), marker("b.png"))

	evs := runBatch(t, h, s.record.ID)
	outcome := evs[len(evs)-1].Payload.(models.BatchOutcome)
	assert.Equal(t, 0, outcome.Success)
	assert.Len(t, outcome.Errors, 2)

	rec, err := h.svc.Records.Get(context.Background(), s.record.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.PendingOCR, rec.Status)
}

func TestOCRBatch_RerunKeepsOneResultPerFile(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png", "b.png")

	runBatch(t, h, s.record.ID)
	runBatch(t, h, s.record.ID)

	results, err := h.svc.OCR.Results(context.Background(), s.record.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, statusByFile(results), 2)

	trend, err := h.svc.Trends.Project(context.Background(), s.project.ID)
	require.NoError(t, err)
	assert.Len(t, trend.Indicators[0].Points, 2)
}

func TestOCRStart_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown record", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.svc.OCR.Start(ctx, "missing")
		assert.Equal(t, http.StatusNotFound, statusCode(t, err))
	})

	t.Run("no files", func(t *testing.T) {
		h := newHarness(t, true)
		s := h.seed(t)
		_, err := h.svc.OCR.Start(ctx, s.record.ID)
		assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
	})

	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, false)
		s := h.seed(t, "a.png")
		_, err := h.svc.OCR.Start(ctx, s.record.ID)
		assert.Equal(t, http.StatusBadRequest, statusCode(t, err))

		rec, err := h.svc.Records.Get(ctx, s.record.ID)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.PendingOCR, rec.Status)
	})
}

func TestRetry_SupersedesAndAdvances(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png")
	h.ai.failOn(marker("a.png"))
	ctx := context.Background()

	runBatch(t, h, s.record.ID)
	results, err := h.svc.OCR.Results(ctx, s.record.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, models.StatusFailed, results[0].Status)

	h.ai.failOn()
	ch, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	resp, err := h.svc.OCR.Retry(ctx, results[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, results[0].ID, resp.ID)

	evs := collect(t, ch, events.OCRComplete)
	outcome := evs[len(evs)-1].Payload.(models.BatchOutcome)
	assert.Equal(t, models.BatchOutcome{RecordID: s.record.ID, Total: 1, Success: 1, Errors: []string{}}, outcome)

	results, err = h.svc.OCR.Results(ctx, s.record.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, resp.ID, results[0].ID)
	assert.Equal(t, models.StatusSuccess, results[0].Status)
	assert.Len(t, results[0].Items, 2)

	rec, err := h.svc.Records.Get(ctx, s.record.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OCRDone, rec.Status)
}

func TestRetry_UnknownResult(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.svc.OCR.Retry(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))
}

func TestUpdateItem_RegeneratesValues(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png")
	ctx := context.Background()
	runBatch(t, h, s.record.ID)

	results, err := h.svc.OCR.Results(ctx, s.record.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)

	item := models.Reading{Name: "血糖", Value: "见图", Unit: "mmol/L"}
	updated, err := h.svc.OCR.UpdateItem(ctx, results[0].ID, 0, item)
	require.NoError(t, err)
	assert.Equal(t, item, updated.Items[0])

	// Editing twice with the same input leaves one value, not two.
	_, err = h.svc.OCR.UpdateItem(ctx, results[0].ID, 0, item)
	require.NoError(t, err)

	trend, err := h.svc.Trends.Project(ctx, s.project.ID)
	require.NoError(t, err)
	points := trend.Indicators[0].Points
	require.Len(t, points, 1)
	assert.Nil(t, points[0].Value)
	assert.Equal(t, "见图", points[0].ValueText)

	_, err = h.svc.OCR.UpdateItem(ctx, results[0].ID, 5, item)
	assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
}

func TestCancel_NothingRunning(t *testing.T) {
	h := newHarness(t, true)
	err := h.svc.OCR.Cancel(context.Background(), "r1")
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))
}

func TestOCRBatch_DelaysBetweenRequests(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png", "b.png", "c.png")
	const delay = 200 * time.Millisecond
	h.deps.Config.OCRRequestDelay = delay

	started := time.Now()
	runBatch(t, h, s.record.ID)

	at := h.ai.visionTimes()
	require.Len(t, at, 3)
	assert.Less(t, at[0].Sub(started), delay, "first request is not delayed")
	for i := 1; i < len(at); i++ {
		assert.GreaterOrEqual(t, at[i].Sub(at[i-1]), delay, "gap before request %d", i+1)
	}
}

func TestCancel_StopsRemainingFiles(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png", "b.png", "c.png")
	ctx := context.Background()
	held := h.ai.holdOn(marker(s.files[1].OriginalFilename))

	ch, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	_, err := h.svc.OCR.Start(ctx, s.record.ID)
	require.NoError(t, err)

	select {
	case <-held:
	case <-time.After(5 * time.Second):
		t.Fatal("second file was never sent")
	}
	require.NoError(t, h.svc.OCR.Cancel(ctx, s.record.ID))

	evs := collect(t, ch, events.OCRComplete)
	outcome := evs[len(evs)-1].Payload.(models.BatchOutcome)
	assert.Equal(t, 3, outcome.Total)
	assert.Equal(t, 1, outcome.Success)
	assert.Equal(t, []string{cancelledReason}, outcome.Errors)
	require.Len(t, named(evs, events.OCRError), 1)

	// the third file is never attempted
	assert.Len(t, h.ai.visionTimes(), 2)

	results, err := h.svc.OCR.Results(ctx, s.record.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, s.files[0].ID, results[0].FileID)

	rec, err := h.svc.Records.Get(ctx, s.record.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OCRDone, rec.Status)
}

func TestCancel_FirstFileLeavesPendingOCR(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png", "b.png")
	ctx := context.Background()
	held := h.ai.holdOn(marker(s.files[0].OriginalFilename))

	ch, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	_, err := h.svc.OCR.Start(ctx, s.record.ID)
	require.NoError(t, err)

	select {
	case <-held:
	case <-time.After(5 * time.Second):
		t.Fatal("first file was never sent")
	}
	require.NoError(t, h.svc.OCR.Cancel(ctx, s.record.ID))

	evs := collect(t, ch, events.OCRComplete)
	outcome := evs[len(evs)-1].Payload.(models.BatchOutcome)
	assert.Equal(t, 0, outcome.Success)
	assert.Equal(t, []string{cancelledReason}, outcome.Errors)

	rec, err := h.svc.Records.Get(ctx, s.record.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.PendingOCR, rec.Status)
}
