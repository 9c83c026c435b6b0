package remote

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"200,time: 0.1s"}, splitLines("200,time: 0.1s\n"))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb"))
}

func TestWrapPathError(t *testing.T) {
	err := wrapPathError("stat", "/data/missing", os.ErrNotExist)
	assert.ErrorIs(t, err, ErrNotFound)

	err = wrapPathError("mkdir", "/data/denied", errors.New("permission denied"))
	assert.NotErrorIs(t, err, ErrNotFound)
	var opErr *OpError
	assert.ErrorAs(t, err, &opErr)
	assert.Equal(t, "mkdir", opErr.Op)
}

func TestDialerDefaults(t *testing.T) {
	d := NewDialer(Config{Host: "dest.example.org"})
	assert.Equal(t, 22, d.cfg.Port)
	assert.NotZero(t, d.cfg.Timeout)
}
