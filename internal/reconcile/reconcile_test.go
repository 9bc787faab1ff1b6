package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

func TestNameMatches(t *testing.T) {
	tests := []struct {
		indicator string
		reading   string
		want      bool
	}{
		{"血糖(空腹)", "血糖", true},
		{"cholesterol", "Total Cholesterol", true},
		{"AST", "ALT", false},
		{"  HbA1c ", "hba1c", true},
		{"白细胞计数（WBC）", "白细胞计数(WBC)", true},
		{"尿酸（UA）", "尿酸", true},
		{"谷丙转氨酶(ALT)", "谷草转氨酶(AST)", false},
		{"甘油三酯((TG))", "甘油三酯", true},
		{"血红蛋白", "", false},
		{"", "血红蛋白", false},
		{"(备注)", "(其他)", false},
	}

	for _, tt := range tests {
		t.Run(tt.indicator+"|"+tt.reading, func(t *testing.T) {
			assert.Equal(t, tt.want, NameMatches(tt.indicator, tt.reading))
		})
	}
}

func TestStripParens(t *testing.T) {
	assert.Equal(t, "ab", stripParens("a(x(y)z)b"))
	assert.Equal(t, "ab", stripParens("a）b"))
	assert.Equal(t, "血糖", stripParens("血糖（空腹）"))
}

func catalog() []models.Indicator {
	return []models.Indicator{
		{ID: "ind-glu", ProjectID: "p1", Name: "血糖(空腹)"},
		{ID: "ind-alt", ProjectID: "p1", Name: "ALT"},
		{ID: "ind-tc", ProjectID: "p1", Name: "cholesterol"},
		{ID: "ind-glu2", ProjectID: "p1", Name: "血糖"},
	}
}

func TestMatch_FirstInCatalogOrder(t *testing.T) {
	ind, ok := Match("血糖", catalog())
	require.True(t, ok)
	assert.Equal(t, "ind-glu", ind.ID)

	_, ok = Match("AST", catalog())
	assert.False(t, ok)
}

func TestReconcile(t *testing.T) {
	src := Source{OcrResultID: "ocr1", RecordID: "r1", ProjectID: "p1", CheckupDate: "2024-03-01"}
	items := []models.Reading{
		{Name: "血糖", Value: "6.8", IsAbnormal: true},
		{Name: "AST", Value: "20"},
		{Name: "Total Cholesterol", Value: "见图"},
	}

	values := Reconcile(src, items, catalog())

	require.Len(t, values, 2)
	assert.Equal(t, "ind-glu", values[0].IndicatorID)
	require.NotNil(t, values[0].Value)
	assert.InDelta(t, 6.8, *values[0].Value, 1e-9)
	assert.Equal(t, "6.8", values[0].ValueText)
	assert.True(t, values[0].IsAbnormal)
	assert.Equal(t, "2024-03-01", values[0].CheckupDate)
	assert.Equal(t, "ocr1", values[0].OcrResultID)

	assert.Equal(t, "ind-tc", values[1].IndicatorID)
	assert.Nil(t, values[1].Value)
	assert.Equal(t, "见图", values[1].ValueText)
	assert.Empty(t, values[1].ID)
}

func TestReconcile_Idempotent(t *testing.T) {
	src := Source{OcrResultID: "ocr1", RecordID: "r1", ProjectID: "p1", CheckupDate: "2024-03-01"}
	items := []models.Reading{{Name: "ALT", Value: "41"}, {Name: "血糖", Value: "5"}}

	assert.Equal(t, Reconcile(src, items, catalog()), Reconcile(src, items, catalog()))
}

func TestReconcile_EmptyCatalog(t *testing.T) {
	values := Reconcile(Source{}, []models.Reading{{Name: "ALT"}}, nil)
	assert.NotNil(t, values)
	assert.Empty(t, values)
}

func TestParseValue(t *testing.T) {
	v := ParseValue(" 12.5 ")
	require.NotNil(t, v)
	assert.Equal(t, 12.5, *v)

	assert.Nil(t, ParseValue(""))
	assert.Nil(t, ParseValue("<0.5"))
	assert.Nil(t, ParseValue("阴性"))
	assert.Nil(t, ParseValue("NaN"))
}
