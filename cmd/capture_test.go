package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/allbin/serialterm/internal/sink"
)

func TestCapturePath(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.Local)

	assert.Equal(t, "out.txt", capturePath("out.txt", "/tmp", sink.JSON, now))
	assert.Equal(t, filepath.Join("/var/log", "capture-20250314-150926.log"), capturePath("", "/var/log", sink.Text, now))
	assert.Equal(t, filepath.Join(".", "capture-20250314-150926.jsonl"), capturePath("", ".", sink.JSON, now))
}
