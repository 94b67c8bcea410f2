package broker

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Notifier raises a desktop notification for a message that arrived while
// its connection sat in the pool. Implementations must not block the main
// loop for long; DBusNotifier dials the session bus once and reuses it.
type Notifier interface {
	Notify(peerAddr, body string)
	Close()
}

// DBusNotifier sends notifications via the freedesktop.org Notifications
// service over the session bus. Notifications are best-effort: a missing
// or unreachable bus disables them rather than failing daemon startup.
type DBusNotifier struct {
	conn *dbus.Conn
}

// NewDBusNotifier connects to the session bus. If no bus is available
// (e.g. a headless daemon), it returns a Notifier whose Notify calls are
// silently ignored rather than failing daemon startup.
func NewDBusNotifier() Notifier {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		slog.Debug("D-Bus session bus unavailable, notifications disabled", "error", err)
		return noopNotifier{}
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		slog.Debug("D-Bus auth failed, notifications disabled", "error", err)
		return noopNotifier{}
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		slog.Debug("D-Bus hello failed, notifications disabled", "error", err)
		return noopNotifier{}
	}
	return &DBusNotifier{conn: conn}
}

// Notify raises one notification per arrived message. Failures are logged
// to stderr and otherwise ignored, per the daemon's per-connection fault
// tolerance policy.
func (n *DBusNotifier) Notify(peerAddr, body string) {
	obj := n.conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	title := fmt.Sprintf("vanillachat @%s", peerAddr)
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		"vanillachatd", // app_name
		uint32(0),      // replaces_id
		"",             // app_icon
		title,          // summary
		body,           // body
		[]string{},     // actions
		map[string]dbus.Variant{}, // hints
		int32(5000),    // expire_timeout (ms)
	)
	if call.Err != nil {
		slog.Warn("desktop notification failed", "error", call.Err)
	}
}

// Close releases the D-Bus connection.
func (n *DBusNotifier) Close() {
	if n.conn != nil {
		_ = n.conn.Close()
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string) {}
func (noopNotifier) Close()                {}

// NewNoopNotifier returns a Notifier whose calls are silently discarded,
// used when the config file sets notify_enabled = false.
func NewNoopNotifier() Notifier { return noopNotifier{} }
