package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"ato_controller/internal/control"
	"ato_controller/internal/models"
	"ato_controller/internal/repository"
	"ato_controller/internal/state"
)

// DeviceSettings is the read side of the settings service.
type DeviceSettings interface {
	Device() models.DeviceConfig
	InstalledContentVersion() string
}

// MonitoringService builds status snapshots and keeps the temperature
// history shown by the UI.
type MonitoringService struct {
	shared   *state.Shared
	settings DeviceSettings
	params   control.Params
	firmware string
	bootedAt time.Time
	now      func() time.Time

	mu      sync.Mutex
	history *control.History
}

func NewMonitoringService(shared *state.Shared, settings DeviceSettings, params control.Params, firmware string, retention time.Duration, bootedAt time.Time) *MonitoringService {
	return &MonitoringService{
		shared:   shared,
		settings: settings,
		params:   params,
		firmware: firmware,
		bootedAt: bootedAt,
		now:      time.Now,
		history:  control.NewHistory(retention),
	}
}

// Seed loads the persisted readings of the retention window so the history
// survives a restart.
func (s *MonitoringService) Seed(ctx context.Context, repo repository.ReadingRepo, retention time.Duration) error {
	readings, err := repo.Since(ctx, s.now().Add(-retention))
	if err != nil {
		return fmt.Errorf("seed temperature history: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range readings {
		s.history.Add(r)
	}
	return nil
}

// AddReading records one valid temperature sample.
func (s *MonitoringService) AddReading(r models.TemperatureReading) {
	s.mu.Lock()
	s.history.Add(r)
	s.mu.Unlock()
}

// Build renders st as the wire snapshot.
func (s *MonitoringService) Build(st control.State, now time.Time) models.Status {
	dc := s.settings.Device()
	upd := s.shared.Update()

	out := models.Status{
		Pumping:       st.Pumping,
		Error:         st.HasError(),
		ErrorCode:     int(st.ErrorKind()),
		SumpLow:       st.SumpLow,
		EmergencyHigh: st.EmergencyHigh,
		RodiLow:       st.RodiLow,
		Temperature:   math.Round(st.Temperature*10) / 10,
		Uptime:        int64(now.Sub(s.bootedAt) / time.Second),

		MaintenanceMode:      st.Maintenance,
		MaintenanceRemaining: int64(st.MaintenanceRemaining(now, s.params) / time.Second),

		DeviceName: dc.DeviceName,
		MinTemp:    st.MinTemp,
		MaxTemp:    st.MaxTemp,

		FirmwareVersion:         s.firmware,
		ContentVersion:          s.settings.InstalledContentVersion(),
		FirmwareUpdateAvailable: upd.Availability.Firmware,
		FirmwareUpdateVersion:   upd.Availability.FirmwareVersion,
		ContentUpdateAvailable:  upd.Availability.Content,
		ContentUpdateVersion:    upd.Availability.ContentVersion,

		UpdateInProgress: upd.InProgress,
		LastUpdateResult: upd.LastResult,
	}
	if !st.LastPumpRun.IsZero() {
		out.LastPumpRun = st.LastPumpRun.Unix()
	}
	if upd.InProgress {
		out.UpdatePhase = upd.Phase
	}
	return out
}

// GetState returns the snapshot of the last completed control cycle.
func (s *MonitoringService) GetState(ctx context.Context) (models.Status, error) {
	return s.Build(s.shared.Control(), s.now()), nil
}

// TemperatureHistory returns the retained readings, oldest first.
func (s *MonitoringService) TemperatureHistory(ctx context.Context) ([]models.TemperatureReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Evict(s.now())
	return s.history.Readings(), nil
}
