package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexString(t *testing.T) {
	got, err := parseHexString("0x48 0x69")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hi"), got)

	got, err = parseHexString("0X0d0A")
	require.NoError(t, err)
	assert.Equal(t, []byte("\r\n"), got)

	_, err = parseHexString("0x1")
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "AT··", preview([]byte("AT\r\n")))

	long := preview([]byte(strings.Repeat("x", 60)))
	assert.Equal(t, strings.Repeat("x", 50)+"...", long)
}
