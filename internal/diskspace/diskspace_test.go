package diskspace

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	// stdout lines returned per Execute call, in order. The last entry
	// repeats once exhausted.
	outputs  [][]string
	commands []string
}

func (f *fakeSession) Execute(_ context.Context, command string) ([]string, []string, error) {
	f.commands = append(f.commands, command)
	idx := len(f.commands) - 1
	if idx >= len(f.outputs) {
		idx = len(f.outputs) - 1
	}
	return f.outputs[idx], nil, nil
}

func (f *fakeSession) Stat(string) (os.FileInfo, error) { return nil, nil }
func (f *fakeSession) Mkdir(string) error               { return nil }
func (f *fakeSession) Rename(string, string) error      { return nil }
func (f *fakeSession) Remove(string) error              { return nil }
func (f *fakeSession) RemoveDir(string) error           { return nil }
func (f *fakeSession) Close() error                     { return nil }

func TestWaitDisabled(t *testing.T) {
	sess := &fakeSession{}
	g := &Guard{ThresholdPercent: 0, Log: zerolog.Nop()}

	require.NoError(t, g.Wait(context.Background(), sess, "/data/out"))
	assert.Empty(t, sess.commands, "disabled guard must not query disk usage")
}

func TestWaitEnoughSpace(t *testing.T) {
	sess := &fakeSession{outputs: [][]string{{" 12%"}}}
	g := &Guard{ThresholdPercent: 20, Log: zerolog.Nop()}

	require.NoError(t, g.Wait(context.Background(), sess, "/data/out"))
	require.Len(t, sess.commands, 1)
	assert.Equal(t, "df --output=pcent /data/out | tail -1", sess.commands[0])
}

func TestWaitBlocksUntilSpaceFreed(t *testing.T) {
	sess := &fakeSession{outputs: [][]string{{" 95%"}, {" 90%"}, {" 40%"}}}
	var slept []time.Duration
	g := &Guard{
		ThresholdPercent: 20,
		Sleep:            func(d time.Duration) { slept = append(slept, d) },
		Log:              zerolog.Nop(),
	}

	require.NoError(t, g.Wait(context.Background(), sess, "/data/out"))
	assert.Len(t, sess.commands, 3)
	assert.Equal(t, []time.Duration{DefaultInterval, DefaultInterval}, slept)
}

func TestWaitUnparsableOutputFailsOpen(t *testing.T) {
	sess := &fakeSession{outputs: [][]string{{"garbage"}}}
	g := &Guard{ThresholdPercent: 20, Log: zerolog.Nop()}

	require.NoError(t, g.Wait(context.Background(), sess, "/data/out"))
	assert.Len(t, sess.commands, 1)
}

func TestParseUsedPercent(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		used  int
		ok    bool
	}{
		{name: "typical df output", lines: []string{" 12%"}, used: 12, ok: true},
		{name: "full disk", lines: []string{"100%"}, used: 100, ok: true},
		{name: "no output", lines: nil, ok: false},
		{name: "garbage", lines: []string{"n/a"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used, ok := parseUsedPercent(tt.lines)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.used, used)
			}
		})
	}
}
