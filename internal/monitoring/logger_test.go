package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// capture swaps in a recording logger for the duration of the test.
func capture(t *testing.T) *[]string {
	t.Helper()
	prevLogf, prevDebugf := Logf, Debugf
	t.Cleanup(func() { Logf, Debugf = prevLogf, prevDebugf })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)

	Logf("session %s started", "abc")
	assert.Equal(t, []string{"session abc started"}, *lines)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("dropped %d", 1) })
	assert.Len(t, *lines, 1, "nil logger must mute output")
}

func TestLogf_DefaultIsUsable(t *testing.T) {
	assert.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("datagram from %v: %d bytes", "127.0.0.1:4950", 8) })
}

func TestSetVerbose(t *testing.T) {
	lines := capture(t)
	SetVerbose(false)

	Debugf("container %d", 1)
	assert.Empty(t, *lines, "Debugf is muted by default")

	SetVerbose(true)
	Debugf("container %d", 2)
	assert.Equal(t, []string{"container 2"}, *lines)

	SetVerbose(false)
	Debugf("container %d", 3)
	assert.Len(t, *lines, 1)
}
