package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := New("not-a-level")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestAudit_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.Audit("patient-1", "grant_access", "grant", true, map[string]interface{}{"viewer": "doctor-1"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Audit event", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "patient-1", line["user_id"])
	assert.Equal(t, "grant_access", line["action"])
	assert.Equal(t, true, line["audit"])
	assert.Contains(t, line, "timestamp")
}

func TestAudit_FailureLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.Audit("doctor-1", "book_visit", "visit", false, nil)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "Audit event failed", line["message"])
}

func TestSecurity(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.Security("record_read_denied", "stranger", map[string]interface{}{"patient": "patient-1"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, true, line["security"])
	assert.Equal(t, "record_read_denied", line["event"])
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.NotPanics(t, func() {
		log.Audit("x", "y", "z", true, nil)
	})
}
