package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]string {
	t.Helper()
	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, false)
	l.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	l.Log(INFO, "usage refreshed", "lists", 3, "campaigns", 2)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "usage refreshed", entry["msg"])
	assert.Equal(t, "3", entry["lists"])
	assert.Equal(t, "2", entry["campaigns"])
	assert.Equal(t, "2026-03-01T12:00:00Z", entry["time"])
}

func TestLogBelowLevelIsDropped(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN, false)
	l.Log(INFO, "ignored")
	assert.Zero(t, buf.Len())
}

func TestLogRedactsEmailAndKeys(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG, true)

	l.Log(WARN, "upstream failed", "email", "john.doe@example.com",
		"url", "https://emailoctopus.com/api/1.6/lists?api_key=eo_abcdef1234567890")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "jo***@example.com", entry["email"])
	assert.Equal(t, "https://emailoctopus.com/api/1.6/lists?api_key=***", entry["url"])
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactAPIKey(t *testing.T) {
	assert.Equal(t, "key eo_***", RedactAPIKey("key eo_1b95b7a03a24aca9"))
	assert.Equal(t, "/campaigns?limit=100&api_key=***", RedactAPIKey("/campaigns?limit=100&api_key=secret"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}
