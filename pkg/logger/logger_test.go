package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opusdl/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{
			name: "file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(t.TempDir(), "logs", "opusdl.log"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opusdl.log")
	l, err := New(&config.LoggingConfig{Level: "debug", File: path})
	require.NoError(t, err)

	l.InfoWithFields("article fetched", map[string]interface{}{"id": "123"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"message":"article fetched"`)
	assert.Contains(t, out, `"id":"123"`)
	assert.Contains(t, out, `"app":"opusdl"`)
	assert.Contains(t, out, `"run_id":"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	for name, fn := range map[string]func(string){
		"debug": l.Debug,
		"info":  l.Info,
		"warn":  l.Warn,
		"error": l.Error,
	} {
		t.Run(name, func(t *testing.T) {
			buf.Reset()
			fn(name + " message")
			assert.Contains(t, buf.String(), name+" message")
			assert.Contains(t, buf.String(), `"level":"`+name+`"`)
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf)

	base.
		WithField("article", "100").
		WithFields(map[string]interface{}{"num": 2, "ok": true}).
		WarnWithFields("picture skipped", map[string]interface{}{"delay": 5 * time.Second})

	out := buf.String()
	assert.Contains(t, out, "picture skipped")
	assert.Contains(t, out, `"article":"100"`)
	assert.Contains(t, out, `"num":2`)
	assert.Contains(t, out, `"ok":true`)

	// Derived loggers must not leak fields back into their parent.
	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "article")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("connection reset")).Error("request failed")
	assert.Contains(t, buf.String(), `"error":"connection reset"`)
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	derived := tl.WithField("id", "7")

	derived.WarnWithFields("blocked module", map[string]interface{}{"hint": "x"})
	tl.Info("done")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "7", msgs[0].Fields["id"])
	assert.Equal(t, "x", msgs[0].Fields["hint"])
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.True(t, tl.HasMessage("blocked"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestOrDefault(t *testing.T) {
	nop := NewNopLogger()
	assert.Same(t, nop, OrDefault(nop))
	assert.NotNil(t, OrDefault(nil))
}

func TestConsoleWriterHidesRunFields(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(consoleWriter(&buf)).With().Str("run_id", "abc").Logger()
	zlog.Info().Str("id", "1").Msg("hello")

	out := buf.String()
	assert.True(t, strings.Contains(out, "hello"))
	assert.NotContains(t, out, "abc")
}
