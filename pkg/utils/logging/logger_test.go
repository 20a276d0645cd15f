package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestLevels(t *testing.T) {
	testCases := []struct {
		level       string
		expectDebug bool
		expectInfo  bool
		expectWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warning", false, false, true},
		{"ERROR", false, false, false},
		{"verbose", false, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Debug("filing fetched")
			logger.Info("company resolved")
			logger.Warn("model retry")

			out := buf.String()
			check := func(want bool, msg string) {
				if want {
					gt.S(t, out).Contains(msg)
				} else {
					gt.S(t, out).NotContains(msg)
				}
			}
			check(tc.expectDebug, "filing fetched")
			check(tc.expectInfo, "company resolved")
			check(tc.expectWarn, "model retry")
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, ok := logging.ParseLevel("Warn")
	gt.V(t, ok).Equal(true)
	gt.V(t, lvl).Equal(slog.LevelWarn)

	lvl, ok = logging.ParseLevel("loud")
	gt.V(t, ok).Equal(false)
	gt.V(t, lvl).Equal(slog.LevelInfo)
}

func TestInvalidLevelIsReported(t *testing.T) {
	buf := &bytes.Buffer{}
	logging.New("loud", buf)
	gt.S(t, buf.String()).Contains("invalid log level")
}

func TestGoerrErrorIsLogged(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf)

	err := goerr.New("edgar request failed", goerr.V("cik", "0000320193"))
	logger.Error("lookup failed", "error", err)

	gt.S(t, buf.String()).Contains("lookup failed")
	gt.S(t, buf.String()).Contains("edgar request failed")
}

func TestContextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf).With("session", "s-1")

	ctx := logging.With(context.Background(), logger)
	gt.Equal(t, logging.From(ctx), logger)

	logging.From(ctx).Info("turn processed")
	gt.S(t, buf.String()).Contains("turn processed")
	gt.S(t, buf.String()).Contains("s-1")
}

func TestFromFallsBackToDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	custom := logging.New("info", buf)
	logging.SetDefault(custom)

	got := logging.From(context.Background())
	gt.Equal(t, got, custom)

	got.Info("from default")
	gt.S(t, buf.String()).Contains("from default")
}
