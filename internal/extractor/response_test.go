package extractor

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

func TestExtractReadings_Strict(t *testing.T) {
	content := `[{"name":"血糖","value":"5.6","unit":"mmol/L","reference_range":"3.9-6.1","is_abnormal":false},
	{"name":"ALT","value":"88","unit":"U/L","reference_range":"0-40","is_abnormal":true,"extra":1}]`

	items := ExtractReadings(content)

	require.Len(t, items, 2)
	assert.Equal(t, models.Reading{Name: "血糖", Value: "5.6", Unit: "mmol/L", ReferenceRange: "3.9-6.1"}, items[0])
	assert.Equal(t, "ALT", items[1].Name)
	assert.True(t, items[1].IsAbnormal)
}

func TestExtractReadings_Fenced(t *testing.T) {
	inner := `[{"name":"WBC","value":"6.2","unit":"10^9/L","reference_range":"4-10","is_abnormal":false}]`

	for _, content := range []string{
		"```json\n" + inner + "\n```",
		"```\n" + inner + "\n```",
		"  ```json" + inner + "```  ",
	} {
		assert.Equal(t, ExtractReadings(inner), ExtractReadings(content), content)
	}
}

func TestExtractReadings_SurroundingProse(t *testing.T) {
	content := "识别结果如下：\n" +
		`[{"name":"HGB","value":"150","unit":"g/L","reference_range":"130-175","is_abnormal":false}]` +
		"\n以上为全部指标。"

	items := ExtractReadings(content)

	require.Len(t, items, 1)
	assert.Equal(t, "HGB", items[0].Name)
}

func TestExtractReadings_Aliases(t *testing.T) {
	content := `[{"指标名称":"总胆固醇","数值":5.9,"单位":"mmol/L","参考值":["0","5.2"],"状态":"↑"},
	{"name":"PLT","value":210,"range":"125-350","abnormal":"正常"},
	{"name":"TG","value":"1.1","reference_range":"0-1.7","参考范围":"ignored","status":"High"}]`

	items := ExtractReadings(content)

	require.Len(t, items, 3)
	assert.Equal(t, models.Reading{
		Name: "总胆固醇", Value: "5.9", Unit: "mmol/L", ReferenceRange: "0-5.2", IsAbnormal: true,
	}, items[0])
	assert.Equal(t, models.Reading{Name: "PLT", Value: "210", ReferenceRange: "125-350"}, items[1])
	assert.Equal(t, "0-1.7", items[2].ReferenceRange)
	assert.True(t, items[2].IsAbnormal)
}

func TestExtractReadings_AbnormalFlag(t *testing.T) {
	tests := []struct {
		flag string
		want bool
	}{
		{`"异常"`, true},
		{`"High"`, true},
		{`" low "`, true},
		{`"↑120"`, true},
		{`"↓"`, true},
		{`"+"`, true},
		{`"yes"`, true},
		{`"1"`, true},
		{`"是"`, true},
		{`true`, true},
		{`"正常"`, false},
		{`"0"`, false},
		{`false`, false},
		{`null`, false},
		{`3`, false},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			items := ExtractReadings(fmt.Sprintf(`[{"name":"x","是否异常":%s}]`, tt.flag))
			require.Len(t, items, 1)
			assert.Equal(t, tt.want, items[0].IsAbnormal)
		})
	}

	items := ExtractReadings(`[{"name":"x"}]`)
	require.Len(t, items, 1)
	assert.False(t, items[0].IsAbnormal)
}

func TestExtractReadings_Unusable(t *testing.T) {
	for _, content := range []string{
		"",
		"抱歉，无法识别该图片。",
		"[{",
		"] before [",
		`{"name":"x"}`,
		"[1, 2, 3]",
		`结果如下 [{"指标名称":"血糖","数值":5.6}] 注: 见附表 [1]`,
		`[{"指标名称":"血糖"}] [{"指标名称":"尿酸"}]`,
	} {
		items := ExtractReadings(content)
		assert.NotNil(t, items, content)
		assert.Empty(t, items, content)
	}
}

func TestExtractReadings_EmptyArray(t *testing.T) {
	items := ExtractReadings("[]")
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

const alphabet = "abcdefghXYZ0123456789.-/ 血糖胆固醇白细胞"

func randomText(r *rand.Rand) string {
	runes := []rune(alphabet)
	n := 1 + r.Intn(8)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteRune(runes[r.Intn(len(runes))])
	}
	return sb.String()
}

func randomReadings(r *rand.Rand) []models.Reading {
	items := make([]models.Reading, 1+r.Intn(5))
	for i := range items {
		items[i] = models.Reading{
			Name:           randomText(r),
			Value:          randomText(r),
			Unit:           randomText(r),
			ReferenceRange: randomText(r),
			IsAbnormal:     r.Intn(2) == 1,
		}
	}
	return items
}

func aliased(items []models.Reading) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{
			"指标名称": it.Name,
			"数值":   it.Value,
			"单位":   it.Unit,
			"参考范围": it.ReferenceRange,
			"是否异常": it.IsAbnormal,
		}
	}
	return out
}

func TestExtractReadings_Property(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		want := randomReadings(r)

		strict, err := json.Marshal(want)
		require.NoError(t, err)
		assert.Equal(t, want, ExtractReadings(string(strict)), "strict")
		assert.Equal(t, want, ExtractReadings("```json\n"+string(strict)+"\n```"), "fenced")
		assert.Equal(t, want, ExtractReadings("结果：\n"+string(strict)+"\n完毕"), "prose")

		alias, err := json.Marshal(aliased(want))
		require.NoError(t, err)
		assert.Equal(t, want, ExtractReadings(string(alias)), "aliased")
		assert.Equal(t, want, ExtractReadings("```\n"+string(alias)+"\n```"), "fenced aliased")

		truncated := string(strict)[:r.Intn(len(strict)-1)]
		if !strings.Contains(truncated, "]") {
			assert.Empty(t, ExtractReadings(truncated), "truncated")
		}
	}
}
