package email

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_Send(t *testing.T) {
	router := NewHandler(0, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"to":"b1@example.com","subject":"Order placed","body":"hi"}`, http.StatusOK},
		{"bad json", `{`, http.StatusBadRequest},
		{"bad recipient", `{"to":"nobody","subject":"x"}`, http.StatusBadRequest},
		{"missing subject", `{"to":"b1@example.com"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
