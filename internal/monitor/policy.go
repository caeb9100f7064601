package monitor

import (
	"fmt"
	"strconv"

	"github.com/goodtune/screenguard/internal/storage"
)

// DefaultWarningPercent is the usage share that triggers the pre-warning.
const DefaultWarningPercent = 80.0

// Decision is the outcome of evaluating one limit against today's usage.
type Decision struct {
	Limit       storage.LimitRecord
	UsedMinutes int64
	Percent     float64
	// Warn is set while usage sits in [warning percent, 100).
	Warn     bool
	Exceeded bool
	// Block requires the limited app to be in the foreground.
	Block bool
}

// Evaluate applies a limit to the app's usage so far today. Used minutes are
// truncated, so 29m59s against a 30 minute limit is not yet exceeded.
func Evaluate(limit storage.LimitRecord, usageMillis int64, foreground string, warningPercent float64) Decision {
	used := usageMillis / 60000
	d := Decision{Limit: limit, UsedMinutes: used}
	if limit.LimitMinutes <= 0 {
		return d
	}

	d.Percent = float64(used) / float64(limit.LimitMinutes) * 100
	d.Warn = d.Percent >= warningPercent && d.Percent < 100
	d.Exceeded = used >= int64(limit.LimitMinutes)
	d.Block = d.Exceeded && foreground == limit.PackageID
	return d
}

// WarningKey identifies the pre-warning for one (package, limit) pair. A
// changed limit gets a fresh key and may warn again.
func WarningKey(limit storage.LimitRecord, warningPercent float64) string {
	return fmt.Sprintf("%s_%d_%s", limit.PackageID, limit.LimitMinutes,
		strconv.FormatFloat(warningPercent, 'f', -1, 64))
}

// AppName is the name shown to the user for a limited app.
func AppName(limit storage.LimitRecord) string {
	if limit.DisplayName != "" {
		return limit.DisplayName
	}
	return limit.PackageID
}
