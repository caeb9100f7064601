package usage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{"fecha", "dia", "tiempo_total_ms", "tiempo_formateado", "apps_usadas", "app_mas_usada"}

// WriteCSV writes one header row and one row per summary, in the given order.
// Day and app names are lower-cased.
func WriteCSV(w io.Writer, summaries []DailySummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			s.DateLabel,
			strings.ToLower(s.DayLabel),
			strconv.FormatInt(s.TotalMillis, 10),
			FormatDuration(s.TotalMillis),
			strconv.Itoa(s.AppCount),
			strings.ToLower(s.MostUsedApp),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", s.DateKey, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatDuration renders milliseconds as "{h}h:{m}m", truncating.
func FormatDuration(millis int64) string {
	hours := millis / int64(time.Hour/time.Millisecond)
	minutes := (millis / int64(time.Minute/time.Millisecond)) % 60
	return fmt.Sprintf("%dh:%dm", hours, minutes)
}

// ReportFileName names an export file after the moment it was produced.
func ReportFileName(now time.Time) string {
	return fmt.Sprintf("screenguard_report_%d.csv", now.UnixMilli())
}
