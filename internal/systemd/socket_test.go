package systemd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyWithoutSystemdIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	assert.NoError(t, NotifyReady())
	assert.NoError(t, NotifyStatus("monitoring 2 limits"))
	assert.NoError(t, NotifyWatchdog())
	assert.NoError(t, NotifyStopping())
}

func TestWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")

	assert.Zero(t, WatchdogInterval())
}

func TestMetricsListenerNotActivated(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	ln, err := MetricsListener()
	require.NoError(t, err)
	assert.Nil(t, ln)
}
