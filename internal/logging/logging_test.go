package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, New("debug", "text").GetLevel())
	require.Equal(t, logrus.WarnLevel, New("WARN", "json").GetLevel())
	require.Equal(t, logrus.InfoLevel, New("", "json").GetLevel())
	require.Equal(t, logrus.InfoLevel, New("loud", "json").GetLevel())
}

func TestNew_Formatters(t *testing.T) {
	require.IsType(t, &logrus.TextFormatter{}, New("info", "TEXT").Formatter)
	require.IsType(t, &logrus.JSONFormatter{}, New("info", "json").Formatter)
	require.IsType(t, &logrus.JSONFormatter{}, New("info", "").Formatter)
}

func TestNew_JSONOutput(t *testing.T) {
	logger := New("info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithField("job_id", "abc").Info("job finished")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "job finished", entry["msg"])
	require.Equal(t, "abc", entry["job_id"])
	require.Equal(t, "info", entry["level"])
}
