package usage

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []DailySummary{{
		DateLabel:   "01/01",
		DayLabel:    "Wed",
		TotalMillis: 5_400_000,
		AppCount:    3,
		MostUsedApp: "Game",
	}})
	require.NoError(t, err)

	assert.Equal(t,
		"fecha,dia,tiempo_total_ms,tiempo_formateado,apps_usadas,app_mas_usada\n"+
			"01/01,wed,5400000,1h:30m,3,game\n",
		buf.String())
}

func TestWriteCSVKeepsOrderAndQuotes(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []DailySummary{
		{DateLabel: "02/01", DayLabel: "Thu", TotalMillis: 0, MostUsedApp: NoApp},
		{DateLabel: "01/01", DayLabel: "Wed", TotalMillis: 60_000, AppCount: 1, MostUsedApp: "Chat, Video"},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"fecha,dia,tiempo_total_ms,tiempo_formateado,apps_usadas,app_mas_usada\n"+
			"02/01,thu,0,0h:0m,0,n/a\n"+
			"01/01,wed,60000,0h:1m,1,\"chat, video\"\n",
		buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "fecha,dia,tiempo_total_ms,tiempo_formateado,apps_usadas,app_mas_usada\n", buf.String())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		millis int64
		want   string
	}{
		{0, "0h:0m"},
		{59_999, "0h:0m"},
		{60_000, "0h:1m"},
		{5_400_000, "1h:30m"},
		{MaxDayMillis, "24h:0m"},
		{26*3_600_000 + 5*60_000 + 59_999, "26h:5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.millis), "millis=%d", tt.millis)
	}
}

func TestReportFileName(t *testing.T) {
	now := time.UnixMilli(1736899200123)
	assert.Equal(t, "screenguard_report_1736899200123.csv", ReportFileName(now))
}
