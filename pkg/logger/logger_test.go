package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	log, err := Build("debug")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithField("job_id", "job_1").Info("compiled")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "compiled", entry["message"])
	assert.Equal(t, "job_1", entry["job_id"])
	assert.Contains(t, entry, "@timestamp")
}

func TestBuildDefaultsToInfo(t *testing.T) {
	log, err := Build("")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestBuildRejectsUnknownLevel(t *testing.T) {
	_, err := Build("loud")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing")
	assert.NotNil(t, log.Out)
}
