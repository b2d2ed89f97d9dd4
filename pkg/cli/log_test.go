package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestFileHookLevels(t *testing.T) {
	hook := newFileHook(&bytes.Buffer{}, logrus.InfoLevel, &logrus.TextFormatter{})
	require.Equal(t, []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}, hook.Levels())
}

func TestFileHookFire(t *testing.T) {
	tests := []struct {
		name     string
		truncate bool
		exp      string
	}{
		{
			name: "Valid/SingleLine",
			exp:  "level=info msg=\"first\\nsecond\"\n",
		},
		{
			name:     "Valid/SplitLines",
			truncate: true,
			exp:      "level=info msg=first\nlevel=info msg=second\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatter := &logrus.TextFormatter{DisableTimestamp: true, DisableColors: true}
			hook := newFileHook(&buf, logrus.InfoLevel, formatter)
			hook.truncateAtNewLine = test.truncate

			entry := logrus.NewEntry(logrus.New())
			entry.Level = logrus.InfoLevel
			entry.Message = "first\nsecond"
			require.NoError(t, hook.Fire(entry))
			require.Equal(t, test.exp, buf.String())
			require.Equal(t, "first\nsecond", entry.Message)
		})
	}
}

func TestSetupFileHook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	before := len(logrus.StandardLogger().Hooks[logrus.DebugLevel])
	level, out := logrus.GetLevel(), logrus.StandardLogger().Out
	logrus.SetLevel(logrus.TraceLevel)
	logrus.SetOutput(io.Discard)
	t.Cleanup(func() {
		logrus.SetLevel(level)
		logrus.SetOutput(out)
	})

	cleanup := setupFileHook(dir)
	logrus.Debug("written to the log file")
	cleanup()

	require.Len(t, logrus.StandardLogger().Hooks[logrus.DebugLevel], before)
	data, err := os.ReadFile(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	require.Contains(t, string(data), "written to the log file")
}
