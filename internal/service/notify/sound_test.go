package notify

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPlayer struct {
	mu     sync.Mutex
	played []string
}

func (p *recordingPlayer) Play(format string, r io.ReadCloser) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.played = append(p.played, format+":"+string(b))
	p.mu.Unlock()
	return nil
}

func TestLoadingCues(t *testing.T) {
	dir := t.TempDir()
	start := filepath.Join(dir, "start.wav")
	done := filepath.Join(dir, "done.mp3")
	require.NoError(t, os.WriteFile(start, []byte("S"), 0o644))
	require.NoError(t, os.WriteFile(done, []byte("D"), 0o644))
	ply := &recordingPlayer{}

	n := NewSoundNotifier(Options{Enabled: true, StartPath: start, DonePath: done, Player: ply}, nil)
	n.StartLoading()
	n.Wait()
	n.StopLoading()
	n.Wait()

	assert.Equal(t, []string{"wav:S", "mp3:D"}, ply.played)
}

func TestDisabledIsSilent(t *testing.T) {
	ply := &recordingPlayer{}
	n := NewSoundNotifier(Options{Player: ply}, nil)
	n.StartLoading()
	n.StopLoading()
	n.Wait()
	assert.Empty(t, ply.played)
}

func TestMissingFileIsLoggedNotFatal(t *testing.T) {
	ply := &recordingPlayer{}
	n := NewSoundNotifier(Options{Enabled: true, StartPath: "/nonexistent/a.mp3", DonePath: "/nonexistent/b.mp3", Player: ply}, nil)
	assert.NotPanics(t, func() {
		n.StartLoading()
		n.Wait()
	})
	assert.Empty(t, ply.played)
}
