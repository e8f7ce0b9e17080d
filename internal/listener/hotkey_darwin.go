package listener

import (
	"context"
	"errors"
	"log/slog"
)

// ErrHotkeyUnsupported is returned on platforms where global hotkey
// registration is disabled.
var ErrHotkeyUnsupported = errors.New("global hotkeys disabled on this platform")

// RegisterHotkey is a no-op on macOS: the hotkey library's CGO event tap can
// crash outside the main thread, so registration is skipped and manual mode
// falls back to the tool surface's toggle.
func RegisterHotkey(ctx context.Context, c *Controller, key string) error {
	slog.Warn("global hotkeys are not supported on macOS, use the listening tools to toggle recording")
	return ErrHotkeyUnsupported
}
