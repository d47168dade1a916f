package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Cleanup(Reset)

	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Cached per component
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.Info("Test message")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "test")
	assert.Contains(t, output, "Test message")
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Data: logrus.Fields{
					"component": "realtime",
					"event":     "invoice-updated",
				},
			},
			want: []string{"[INFO]", "realtime", "test message", "event=invoice-updated"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "warning message",
				Data: logrus.Fields{
					"component": "realtime",
				},
			},
			want:    []string{"[WARN]", "warning message"},
			notWant: []string{"realtime"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "test message with caller",
					Data:    logrus.Fields{"component": "store"},
					Caller: &runtime.Frame{
						File:     "/path/to/file.go",
						Line:     42,
						Function: "github.com/example/package.TestFunction",
					},
				}
			}(),
			want: []string{"[INFO]", "test message with caller", "[file.go:42 package.TestFunction]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			output, err := formatter.Format(tt.entry)
			require.NoError(t, err)

			for _, want := range tt.want {
				assert.Contains(t, string(output), want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, string(output), notWant)
			}
		})
	}
}

func TestFormatterFieldOrderIsStable(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	entry := &logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"b": 2, "a": 1, "c": 3},
	}

	output, err := formatter.Format(entry)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(output), "m a=1 b=2 c=3\n"), string(output))
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("INVOICEDASH_LOG_LEVEL", "debug")
	t.Setenv("INVOICEDASH_LOG_CALLER", "true")

	logger := New("env-test", Config{})
	assert.Equal(t, logrus.DebugLevel, logger.Logger.GetLevel())
	assert.True(t, logger.Logger.ReportCaller)
}

func TestJSONPreset(t *testing.T) {
	t.Setenv("INVOICEDASH_LOG_LEVEL", "")
	logger := New("json-test", Config{Level: "warn", Format: FormatConfig{Preset: "json"}})

	assert.Equal(t, logrus.WarnLevel, logger.Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Logger.Formatter)
}

func TestFileSink(t *testing.T) {
	t.Setenv("INVOICEDASH_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "{component}.log")

	logger := New("mock-server", Config{
		File:   FileSinkConfig{Enabled: true, Path: path},
		Format: FormatConfig{StructuredToStderr: "never"},
	})
	logger.Info("hello file")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "mock-server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Success("sent")
	p.Field("ack", "ok")

	assert.Contains(t, buf.String(), "sent")
	assert.Contains(t, buf.String(), "ack")
	assert.Contains(t, buf.String(), "ok")
}
