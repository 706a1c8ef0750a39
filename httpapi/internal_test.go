package httpapi

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	a := &API{logger: slog.New(slog.NewTextHandler(&logs, nil))}

	rec := httptest.NewRecorder()
	a.writeData(rec, http.StatusOK, map[string]any{"broken": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "write response")
	assert.Contains(t, logs.String(), "status=200")
}
