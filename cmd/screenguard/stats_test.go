package main

import (
	"testing"

	"github.com/goodtune/screenguard/internal/config"
	"github.com/goodtune/screenguard/internal/usage"
)

func TestCategoryTotals(t *testing.T) {
	apps := []usage.AppUsageSummary{
		{PackageID: "a", UsageMillis: 1000, Category: usage.CategoryGames},
		{PackageID: "b", UsageMillis: 3000, Category: usage.CategorySocial},
		{PackageID: "c", UsageMillis: 2500, Category: usage.CategoryGames},
	}

	got := categoryTotals(apps)
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(got))
	}
	if got[0].category != usage.CategoryGames || got[0].millis != 3500 {
		t.Fatalf("unexpected first category: %+v", got[0])
	}
	if got[1].category != usage.CategorySocial || got[1].millis != 3000 {
		t.Fatalf("unexpected second category: %+v", got[1])
	}
}

func TestHistoryWindow(t *testing.T) {
	cfg := config.UsageConfig{HistoryDays: 7, RetentionDays: 90}

	tests := []struct {
		requested int
		want      int
		wantErr   bool
	}{
		{requested: 0, want: 7},
		{requested: -3, want: 7},
		{requested: 30, want: 30},
		{requested: 90, want: 90},
		{requested: 91, wantErr: true},
	}
	for _, tt := range tests {
		got, err := historyWindow(tt.requested, cfg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("historyWindow(%d): expected error", tt.requested)
			}
			continue
		}
		if err != nil {
			t.Errorf("historyWindow(%d): %v", tt.requested, err)
			continue
		}
		if got != tt.want {
			t.Errorf("historyWindow(%d) = %d, want %d", tt.requested, got, tt.want)
		}
	}
}
