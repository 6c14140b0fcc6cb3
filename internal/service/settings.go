package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"ato_controller/internal/logger"
	"ato_controller/internal/models"
	"ato_controller/internal/repository"
)

const (
	keyDeviceConfig   = "device_config"
	keyContentVersion = "content_version"

	deviceNameSuffix = "-ato"
	maxDeviceNameLen = 39
)

var (
	ErrInvalidTempRange  = errors.New("invalid temperature range: min and max must be finite and min < max")
	ErrInvalidDeviceName = errors.New("invalid device name: use letters, digits and hyphens")
)

// EventSink receives log events without blocking the caller.
type EventSink interface {
	Event(e models.Event)
}

// SettingsService keeps the device configuration in memory and writes every
// change through to the settings store before acknowledging it.
type SettingsService struct {
	mu      sync.RWMutex
	repo    repository.SettingsRepo
	events  EventSink
	device  models.DeviceConfig
	content string
	onBand  func(minTemp, maxTemp float64)
	log     *logger.Logger
}

// NewSettingsService loads the stored configuration. An absent, unreadable or
// invalid record is replaced by the defaults and rewritten.
func NewSettingsService(repo repository.SettingsRepo, events EventSink, log *logger.Logger) (*SettingsService, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &SettingsService{repo: repo, events: events, log: log}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SettingsService) load() error {
	dc, err := s.readDevice()
	if err != nil {
		s.log.Warnw("device_config_reset", "err", err)
		dc = models.DefaultDeviceConfig()
		if err := s.writeDevice(dc); err != nil {
			return err
		}
	}
	s.device = dc

	v, err := s.repo.Get(keyContentVersion)
	switch {
	case err == nil:
		s.content = string(v)
	case errors.Is(err, repository.ErrNotFound):
	default:
		return fmt.Errorf("read content version: %w", err)
	}

	s.log.Infow("settings_loaded",
		"device_name", s.device.DeviceName,
		"min_temp", s.device.MinTemp,
		"max_temp", s.device.MaxTemp,
		"content_version", s.content)
	return nil
}

func (s *SettingsService) readDevice() (models.DeviceConfig, error) {
	var dc models.DeviceConfig
	raw, err := s.repo.Get(keyDeviceConfig)
	if err != nil {
		return dc, err
	}
	if err := json.Unmarshal(raw, &dc); err != nil {
		return dc, fmt.Errorf("decode device config: %w", err)
	}
	if !dc.Valid {
		return dc, errors.New("device config marked invalid")
	}
	if !validDeviceName(dc.DeviceName) {
		return dc, fmt.Errorf("stored device name %q: %w", dc.DeviceName, ErrInvalidDeviceName)
	}
	if !validRange(dc.MinTemp, dc.MaxTemp) {
		return dc, ErrInvalidTempRange
	}
	return dc, nil
}

func (s *SettingsService) writeDevice(dc models.DeviceConfig) error {
	dc.Valid = true
	raw, err := json.Marshal(dc)
	if err != nil {
		return fmt.Errorf("encode device config: %w", err)
	}
	if err := s.repo.Put(keyDeviceConfig, raw); err != nil {
		return fmt.Errorf("write device config: %w", err)
	}
	return nil
}

// OnBandChange registers fn to run after the temperature band changed.
func (s *SettingsService) OnBandChange(fn func(minTemp, maxTemp float64)) {
	s.mu.Lock()
	s.onBand = fn
	s.mu.Unlock()
}

func (s *SettingsService) Device() models.DeviceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

func (s *SettingsService) SetTempRange(ctx context.Context, minTemp, maxTemp float64) error {
	if !validRange(minTemp, maxTemp) {
		return ErrInvalidTempRange
	}

	s.mu.Lock()
	next := s.device
	next.MinTemp, next.MaxTemp = minTemp, maxTemp
	if err := s.writeDevice(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.device = next
	fn := s.onBand
	s.mu.Unlock()

	if fn != nil {
		fn(minTemp, maxTemp)
	}
	s.log.Infow("temperature_range_set", "min_temp", minTemp, "max_temp", maxTemp)
	s.emit(fmt.Sprintf("Temperature range set to %.1f-%.1f", minTemp, maxTemp), map[string]any{
		"min_temp": minTemp,
		"max_temp": maxTemp,
	})
	return nil
}

// SetDeviceName stores name with the "-ato" suffix appended when missing.
func (s *SettingsService) SetDeviceName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if !validDeviceName(name) {
		return ErrInvalidDeviceName
	}
	if !strings.HasSuffix(name, deviceNameSuffix) {
		name += deviceNameSuffix
	}
	if len(name) > maxDeviceNameLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidDeviceName, maxDeviceNameLen)
	}

	s.mu.Lock()
	next := s.device
	next.DeviceName = name
	if err := s.writeDevice(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.device = next
	s.mu.Unlock()

	s.log.Infow("device_name_set", "device_name", name)
	s.emit("Device name set to "+name, map[string]any{"device_name": name})
	return nil
}

func (s *SettingsService) InstalledContentVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// SetInstalledContentVersion records the version of a freshly installed
// content image.
func (s *SettingsService) SetInstalledContentVersion(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Put(keyContentVersion, []byte(v)); err != nil {
		return fmt.Errorf("write content version: %w", err)
	}
	s.content = v
	return nil
}

func (s *SettingsService) emit(msg string, meta map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Event(models.Event{Type: models.EventConfig, Description: msg, Metadata: meta})
}

func validDeviceName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

func validRange(minTemp, maxTemp float64) bool {
	for _, v := range []float64{minTemp, maxTemp} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return minTemp < maxTemp
}
