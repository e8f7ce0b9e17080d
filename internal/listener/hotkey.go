//go:build !darwin

package listener

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.design/x/hotkey"
)

// keyNames maps config key names to hotkey key codes. The modifier pair is
// fixed at ctrl+shift so the combination stays clear of plain typing.
var keyNames = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"space": hotkey.KeySpace,
}

// RegisterHotkey binds ctrl+shift+<key> to the controller's recording toggle
// until ctx is cancelled. key is a single letter or "space".
func RegisterHotkey(ctx context.Context, c *Controller, key string) error {
	code, ok := keyNames[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unsupported hotkey %q", key)
	}

	hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, code)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("registering hotkey ctrl+shift+%s: %w", key, err)
	}
	slog.Info("hotkey registered", "combo", "ctrl+shift+"+strings.ToLower(key))

	go func() {
		defer hk.Unregister()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hk.Keydown():
				if err := c.ToggleRecording(); err != nil {
					slog.Debug("hotkey toggle rejected", "error", err)
				}
			}
		}
	}()
	return nil
}
