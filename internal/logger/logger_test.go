package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONInProduction(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(false, buf)
	defer Init(false, nil)

	WithFields(logrus.Fields{"audit_id": 7}).Info("status changed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "status changed", entry["msg"])
	assert.EqualValues(t, 7, entry["audit_id"])
}

func TestInit_DebugLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(true, buf)
	defer Init(false, nil)

	Log().Debug("visible in debug")
	assert.Contains(t, buf.String(), "visible in debug")
}

func TestRotatingWriter_CreatesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w := RotatingWriter(dir, "test.log")
	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "test.log"))
	assert.NoError(t, err)
}
