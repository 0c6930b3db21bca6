package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyUnit       = "unit"
	KeyProfile    = "profile"
	KeyStage      = "stage"
	KeyBuildID    = "build_id"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyAttempt    = "attempt"
	KeyPID        = "pid"
	KeySize       = "size"
	KeyCommand    = "command"
	KeyWatcher    = "watcher"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Unit(name string) slog.Attr      { return slog.String(KeyUnit, name) }
func Profile(p string) slog.Attr      { return slog.String(KeyProfile, p) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func PID(pid int) slog.Attr           { return slog.Int(KeyPID, pid) }
func Size(human string) slog.Attr     { return slog.String(KeySize, human) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Watcher(name string) slog.Attr   { return slog.String(KeyWatcher, name) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
