package logger

import (
	"bytes"
	"errors"
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	fn()
	return buf.String()
}

func TestFormatFields_SortedKeys(t *testing.T) {
	got := formatFields(Fields{"b": 2, "a": "x", "c": 1.5, "d": 3 * time.Second})
	assert.Equal(t, "{a=x, b=2, c=1.50, d=3s}", got)
	assert.Equal(t, "", formatFields(nil))
}

func TestWithDatagram(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 7400}
	fields := WithDatagram(addr, 2048)

	assert.Equal(t, "127.0.0.1:7400", fields["peer"])
	assert.Equal(t, "2.0 kB", fields["size"])
	assert.Equal(t, 2048, fields["size_bytes"])

	assert.NotContains(t, WithDatagram(nil, 1), "peer")
}

func TestFieldsWith_DoesNotMutate(t *testing.T) {
	base := Fields{"a": 1}
	ext := base.With(Fields{"b": 2})

	assert.Len(t, base, 1)
	assert.Equal(t, Fields{"a": 1, "b": 2}, ext)
}

func TestLevels(t *testing.T) {
	out := captureLog(t, func() {
		Info("hello", Fields{"k": "v"})
		Warn("careful", nil)
		Debug("detail", Fields{"n": 1})
		Error("failed", errors.New("boom"), Fields{"session_id": "s1"})
	})

	assert.Contains(t, out, "[INFO] hello {k=v}")
	assert.Contains(t, out, "[WARN] careful")
	assert.Contains(t, out, "[DEBUG] detail {n=1}")
	assert.Contains(t, out, "[ERROR] failed: boom {session_id=s1}")
}
