package audio

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// systemPlay hands a clip to the operating system's default player when
// the primary sink is unavailable. Fire and forget: it returns as soon as
// the player launches, and the temp file is cleaned up shortly after.
func (m *Manager) systemPlay(data []byte) error {
	ext := ".mp3"
	if isWAV(data) {
		ext = ".wav"
	}

	f, err := os.CreateTemp("", "apexcoach-*"+ext)
	if err != nil {
		return fmt.Errorf("creating temp audio file: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return fmt.Errorf("writing temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}

	cmd := systemPlayerCommand(name)
	if err := cmd.Start(); err != nil {
		os.Remove(name)
		return fmt.Errorf("launching system player: %w", err)
	}
	m.log.Debug("audio manager: clip handed to system player (%s)", name)

	// Give the external player time to open the file before removing it.
	time.AfterFunc(fallbackCleanupDelay, func() {
		os.Remove(name)
	})
	return nil
}

func systemPlayerCommand(path string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("afplay", path)
	case "windows":
		return exec.Command("cmd", "/C", "start", "", path)
	default:
		return exec.Command("xdg-open", path)
	}
}
