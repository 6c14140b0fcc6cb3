package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"ato_controller/internal/models"
	"ato_controller/internal/service"
	"ato_controller/internal/updater"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateRoutes(t *testing.T) {
	upd := &mockUpdates{
		avail: models.Availability{Firmware: true, FirmwareVersion: "1.3.0", FirmwareURL: "http://x/fw.bin"},
		kind:  updater.KindFirmware,
		status: models.UpdateStatus{
			InProgress: true,
			Kind:       string(updater.KindFirmware),
			Phase:      "downloading",
		},
	}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Updates: upd}
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/updates", "valid", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st models.UpdateStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.InProgress)
	assert.Equal(t, "downloading", st.Phase)

	w = doRequest(r, http.MethodPost, "/api/v1/updates/check", "valid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"firmware_update_version":"1.3.0"`)
	assert.NotContains(t, w.Body.String(), "fw.bin")

	w = doRequest(r, http.MethodPost, "/api/v1/updates/apply", "valid", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"started","kind":"firmware"}`, w.Body.String())
	assert.Equal(t, 1, upd.applied)
}

func TestUpdateApplyErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"in_progress", service.ErrUpdateInProgress, http.StatusConflict},
		{"nothing_pending", service.ErrNoUpdateAvailable, http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &service.Service{
				Authorization: &mockAuth{parseID: 1},
				Updates:       &mockUpdates{applyErr: tc.err},
			}
			w := doRequest(newTestRouter(s), http.MethodPost, "/api/v1/updates/apply", "valid", "")
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestUpdateCheckFailure(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{parseID: 1},
		Updates:       &mockUpdates{checkErr: errors.New("dial tcp: refused")},
	}
	w := doRequest(newTestRouter(s), http.MethodPost, "/api/v1/updates/check", "valid", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
