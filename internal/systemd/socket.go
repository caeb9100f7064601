// Package systemd wraps sd_notify and socket activation for the daemon.
package systemd

import (
	"fmt"
	"net"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// MetricsSocketName matches FileDescriptorName= in screenguard.socket.
const MetricsSocketName = "metrics"

// MetricsListener returns the socket-activated metrics listener, or nil when
// systemd passed no socket of that name.
func MetricsListener() (net.Listener, error) {
	if len(activation.Files(false)) == 0 {
		return nil, nil
	}
	named, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("read activated sockets: %w", err)
	}
	for _, ln := range named[MetricsSocketName] {
		if ln != nil {
			return ln, nil
		}
	}
	return nil, nil
}

func NotifyReady() error { return notify(daemon.SdNotifyReady) }
func NotifyStopping() error { return notify(daemon.SdNotifyStopping) }

// NotifyWatchdog pets the watchdog; serve calls it after every monitor tick.
func NotifyWatchdog() error { return notify(daemon.SdNotifyWatchdog) }

// NotifyStatus sets the line shown by systemctl status.
func NotifyStatus(status string) error {
	return notify("STATUS=" + status)
}

// WatchdogInterval is WatchdogSec= for this process, or 0 when unsupervised.
func WatchdogInterval() time.Duration {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return interval
}

// notify is a no-op outside systemd.
func notify(state string) error {
	if _, err := daemon.SdNotify(false, state); err != nil {
		return fmt.Errorf("sd_notify %q: %w", state, err)
	}
	return nil
}
