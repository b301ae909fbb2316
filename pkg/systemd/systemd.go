// Package systemd reports service lifecycle state to the init system.
// All calls are no-ops outside a systemd unit (NOTIFY_SOCKET unset).
package systemd

import (
	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady signals that startup finished (Type=notify units).
// Returns true if the notification was actually delivered.
func NotifyReady() bool {
	ok, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	return ok && err == nil
}

// NotifyStopping signals that shutdown has begun.
func NotifyStopping() bool {
	ok, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	return ok && err == nil
}

// NotifyStatus publishes a human-readable status line.
func NotifyStatus(status string) bool {
	ok, err := daemon.SdNotify(false, "STATUS="+status)
	return ok && err == nil
}
