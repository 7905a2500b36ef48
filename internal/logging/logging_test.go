package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mongobar.log")
	logger, closer, err := New(Options{File: path, Level: "debug", Format: FormatJSON})
	require.NoError(t, err)

	Component(logger, "replay").WithField("run_id", "r1").Debug("dispatching")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"replay"`)
	assert.Contains(t, string(data), `"run_id":"r1"`)
	assert.Contains(t, string(data), `"msg":"dispatching"`)
}

func TestNewLevel(t *testing.T) {
	logger, _, err := New(Options{Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger, _, err = New(Options{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
