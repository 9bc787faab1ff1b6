// Package reconcile links extracted readings to catalog indicators and
// derives the time-series values owned by one OCR result. Everything here is
// pure: IDs and timestamps are assigned when the values are stored.
package reconcile

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

// Source identifies the OCR result the readings came from.
type Source struct {
	OcrResultID string
	RecordID    string
	ProjectID   string
	CheckupDate string
}

func normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// NameMatches is the fuzzy name rule: equality or containment in either
// direction, first on the folded names and then with parenthesised
// qualifiers removed. Empty names never match.
func NameMatches(indicatorName, readingName string) bool {
	a, b := normalize(indicatorName), normalize(readingName)
	if related(a, b) {
		return true
	}
	return related(stripParens(a), stripParens(b))
}

func related(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

func stripParens(s string) string {
	var sb strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '（':
			depth++
		case ')', '）':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				sb.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// Match returns the first catalog indicator whose name matches, in catalog
// order.
func Match(name string, catalog []models.Indicator) (models.Indicator, bool) {
	for _, ind := range catalog {
		if NameMatches(ind.Name, name) {
			return ind, true
		}
	}
	return models.Indicator{}, false
}

// ParseValue returns nil when the text is not a plain finite number.
func ParseValue(text string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Reconcile maps readings onto the catalog. Unmatched readings produce no
// value; they stay visible in the OCR result's item list only.
func Reconcile(src Source, items []models.Reading, catalog []models.Indicator) []models.IndicatorValue {
	values := make([]models.IndicatorValue, 0, len(items))
	for _, item := range items {
		ind, ok := Match(item.Name, catalog)
		if !ok {
			continue
		}
		values = append(values, models.IndicatorValue{
			OcrResultID: src.OcrResultID,
			RecordID:    src.RecordID,
			ProjectID:   src.ProjectID,
			IndicatorID: ind.ID,
			CheckupDate: src.CheckupDate,
			Value:       ParseValue(item.Value),
			ValueText:   item.Value,
			IsAbnormal:  item.IsAbnormal,
		})
	}
	return values
}
