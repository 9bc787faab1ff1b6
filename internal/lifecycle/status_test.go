package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHappyPath(t *testing.T) {
	s := Created()
	assert.Equal(t, PendingUpload, s)

	s, changed := AfterUpload(s)
	assert.True(t, changed)
	assert.Equal(t, PendingOCR, s)

	s = StartOCR(s)
	assert.Equal(t, OCRProcessing, s)

	s = FinishOCR(s, 2)
	assert.Equal(t, OCRDone, s)

	s = StartAnalysis(s)
	assert.Equal(t, AIProcessing, s)

	s = FinishAnalysis(s, nil)
	assert.Equal(t, AIDone, s)
}

func TestAfterUploadOnlyFirst(t *testing.T) {
	for _, st := range []Status{PendingOCR, OCRDone, AIDone, Status("legacy")} {
		next, changed := AfterUpload(st)
		assert.False(t, changed, st)
		assert.Equal(t, st, next)
	}
}

func TestFinishOCRWithoutSuccessReverts(t *testing.T) {
	assert.Equal(t, PendingOCR, FinishOCR(OCRProcessing, 0))
}

func TestFinishAnalysisFailureFallsBack(t *testing.T) {
	assert.Equal(t, OCRDone, FinishAnalysis(AIProcessing, errors.New("timeout")))
}

func TestAfterRetry(t *testing.T) {
	assert.Equal(t, OCRDone, AfterRetry(PendingOCR, true))
	assert.Equal(t, PendingOCR, AfterRetry(PendingOCR, false))
	assert.Equal(t, AIDone, AfterRetry(AIDone, true))
}

func TestStartTransitionsFromAnyStatus(t *testing.T) {
	for _, st := range []Status{PendingUpload, AIDone, Status("whatever")} {
		assert.Equal(t, OCRProcessing, StartOCR(st))
		assert.Equal(t, AIProcessing, StartAnalysis(st))
	}
}

func TestParse(t *testing.T) {
	st, err := Parse("ocr_done")
	require.NoError(t, err)
	assert.Equal(t, OCRDone, st)

	_, err = Parse("archived")
	assert.Error(t, err)
}
