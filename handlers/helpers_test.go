package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/football-investment/practice-booking-system-sub003/services"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ErrCompetitionNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: 12 participants", services.ErrInvalidParticipantCount), http.StatusBadRequest},
		{services.ErrUnsupportedCombination, http.StatusBadRequest},
		{services.ErrSessionsAlreadyGenerated, http.StatusConflict},
		{services.ErrMatchAlreadyFinalized, http.StatusConflict},
		{services.ErrGenerationInFlight, http.StatusConflict},
		{services.ErrDuplicateReward, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, body["error"], tt.err.Error())
			} else {
				assert.Equal(t, tt.err.Error(), body["error"])
			}
		})
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"x"}`, ""},
		{"empty", ``, "must not be empty"},
		{"syntax", `{"name":`, "badly-formed"},
		{"wrong type", `{"name":3}`, `field "name"`},
		{"unknown field", `{"nick":"x"}`, "unknown key"},
		{"two values", `{"name":"x"}{"name":"y"}`, "single JSON value"},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "must not be larger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := readJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "x", dst.Name)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadOptionalJSON(t *testing.T) {
	var dst struct {
		Seed *int `json:"seed"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, readOptionalJSON(httptest.NewRecorder(), req, &dst))
	assert.Nil(t, dst.Seed)
}
