package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

func TestTrends_ProjectAndAll(t *testing.T) {
	h := newHarness(t, true)
	s := h.seed(t, "a.png")
	ctx := context.Background()
	runBatch(t, h, s.record.ID)

	trend, err := h.svc.Trends.Project(ctx, s.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "血常规", trend.ProjectName)
	require.Len(t, trend.Indicators, 1)

	glucose := trend.Indicators[0]
	assert.Equal(t, s.indicator.ID, glucose.IndicatorID)
	require.Len(t, glucose.Points, 1)
	point := glucose.Points[0]
	assert.Equal(t, "2024-05-01", point.CheckupDate)
	require.NotNil(t, point.Value)
	assert.InDelta(t, 5.6, *point.Value, 1e-9)
	assert.Equal(t, "5.6", point.ValueText)
	assert.False(t, point.IsAbnormal)

	inactive := false
	other, err := h.svc.Projects.Create(ctx, &models.CreateProjectRequest{Name: "尿常规"})
	require.NoError(t, err)
	_, err = h.svc.Projects.Update(ctx, other.ID, &models.UpdateProjectRequest{IsActive: &inactive})
	require.NoError(t, err)

	all, err := h.svc.Trends.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, s.project.ID, all[0].ProjectID)
}

func TestTrends_UnknownProject(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.Trends.Project(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))
}
