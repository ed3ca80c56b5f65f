package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_WithSharesRecord(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.With(logging.CaseID("c-1"))

	child.Warn("blocked")

	v, ok := logger.FieldValue("blocked", "case_id")
	assert.True(t, ok)
	assert.Equal(t, "c-1", v)

	_, ok = logger.FieldValue("blocked", "missing")
	assert.False(t, ok)
}
