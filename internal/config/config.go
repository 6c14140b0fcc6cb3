// Package config loads the daemon configuration from configs/config.yml,
// ATO_* environment variables and the defaults registered below.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ATO"

// Config is the typed view of config.yml.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Control  ControlConfig  `mapstructure:"control"`
	Alarm    AlarmConfig    `mapstructure:"alarm"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	Update   UpdateConfig   `mapstructure:"update"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

// DBConfig points at the sqlite file (events, readings, operators) and the
// bbolt file holding the device settings.
type DBConfig struct {
	Path         string `mapstructure:"path"`
	SettingsPath string `mapstructure:"settings_path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	OpenSignUp bool          `mapstructure:"open_signup"`
}

// ControlConfig holds the timing constants of the control cycle.
type ControlConfig struct {
	Cycle              time.Duration `mapstructure:"cycle"`
	PumpTimeout        time.Duration `mapstructure:"pump_timeout"`
	PumpCooldown       time.Duration `mapstructure:"pump_cooldown"`
	MaintenanceTimeout time.Duration `mapstructure:"maintenance_timeout"`
	TempSamplePeriod   time.Duration `mapstructure:"temp_sample_period"`
	HistoryRetention   time.Duration `mapstructure:"history_retention"`
	EventRetention     time.Duration `mapstructure:"event_retention"`
}

type AlarmConfig struct {
	TempAlertRepeat time.Duration `mapstructure:"temp_alert_repeat"`
	BurstBeeps      int           `mapstructure:"burst_beeps"`
	BeepLength      time.Duration `mapstructure:"beep_length"`
	UpdateBlink     time.Duration `mapstructure:"update_blink"`
}

// Pin is one GPIO line. ActiveLow inverts the raw level so that true always
// means "condition present" (sensor tripped, relay energised).
type Pin struct {
	Line      int  `mapstructure:"line"`
	ActiveLow bool `mapstructure:"active_low"`
}

type LEDConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Red     Pin  `mapstructure:"red"`
	Green   Pin  `mapstructure:"green"`
	Blue    Pin  `mapstructure:"blue"`
}

// HardwareConfig selects the board backend. Driver "gpio" talks to the
// character device, "sim" runs the built-in water model.
type HardwareConfig struct {
	Driver    string        `mapstructure:"driver"`
	Chip      string        `mapstructure:"chip"`
	Sump      Pin           `mapstructure:"sump"`
	Emergency Pin           `mapstructure:"emergency"`
	Rodi      Pin           `mapstructure:"rodi"`
	Relay     Pin           `mapstructure:"relay"`
	Buzzer    Pin           `mapstructure:"buzzer"`
	LED       LEDConfig     `mapstructure:"led"`
	W1Device  string        `mapstructure:"w1_device"`
	SimTick   time.Duration `mapstructure:"sim_tick"`
}

type UpdateConfig struct {
	FirmwareVersion  string        `mapstructure:"firmware_version"`
	ManifestURL      string        `mapstructure:"manifest_url"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	Schedule         string        `mapstructure:"schedule"`
	CheckTimeout     time.Duration `mapstructure:"check_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
	SignatureTimeout time.Duration `mapstructure:"signature_timeout"`
	SpaceMargin      int64         `mapstructure:"space_margin"`
	MaxImageSize     int64         `mapstructure:"max_image_size"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	SpoolDir         string        `mapstructure:"spool_dir"`
	FirmwarePath     string        `mapstructure:"firmware_path"`
	ContentPath      string        `mapstructure:"content_path"`
	PublicKeyPath    string        `mapstructure:"public_key_path"`
	RestartDelay     time.Duration `mapstructure:"restart_delay"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type WatchdogConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads the config file at path, or configs/config.yml when path is
// empty. A missing default file is not an error: defaults and environment
// still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("http.port", "8080")

	v.SetDefault("db.path", "ato.db")
	v.SetDefault("db.settings_path", "settings.db")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.open_signup", false)

	v.SetDefault("control.cycle", "100ms")
	v.SetDefault("control.pump_timeout", "120s")
	v.SetDefault("control.pump_cooldown", "60s")
	v.SetDefault("control.maintenance_timeout", "1h")
	v.SetDefault("control.temp_sample_period", "30s")
	v.SetDefault("control.history_retention", "24h")
	v.SetDefault("control.event_retention", "720h")

	v.SetDefault("alarm.temp_alert_repeat", "5m")
	v.SetDefault("alarm.burst_beeps", 10)
	v.SetDefault("alarm.beep_length", "100ms")
	v.SetDefault("alarm.update_blink", "200ms")

	v.SetDefault("hardware.driver", "sim")
	v.SetDefault("hardware.chip", "gpiochip0")
	v.SetDefault("hardware.sump.line", 26)
	v.SetDefault("hardware.sump.active_low", true)
	v.SetDefault("hardware.emergency.line", 27)
	v.SetDefault("hardware.emergency.active_low", false)
	v.SetDefault("hardware.rodi.line", 5)
	v.SetDefault("hardware.rodi.active_low", true)
	v.SetDefault("hardware.relay.line", 4)
	v.SetDefault("hardware.relay.active_low", false)
	v.SetDefault("hardware.buzzer.line", 12)
	v.SetDefault("hardware.buzzer.active_low", false)
	v.SetDefault("hardware.led.enabled", false)
	v.SetDefault("hardware.led.red.line", 17)
	v.SetDefault("hardware.led.green.line", 22)
	v.SetDefault("hardware.led.blue.line", 23)
	v.SetDefault("hardware.w1_device", "")
	v.SetDefault("hardware.sim_tick", "1s")

	v.SetDefault("update.firmware_version", "")
	v.SetDefault("update.manifest_url", "")
	v.SetDefault("update.username", "")
	v.SetDefault("update.password", "")
	v.SetDefault("update.schedule", "@every 48h")
	v.SetDefault("update.check_timeout", "5s")
	v.SetDefault("update.request_timeout", "10s")
	v.SetDefault("update.download_timeout", "5m")
	v.SetDefault("update.signature_timeout", "10s")
	v.SetDefault("update.space_margin", 4096)
	v.SetDefault("update.max_image_size", 64<<20)
	v.SetDefault("update.chunk_size", 4096)
	v.SetDefault("update.spool_dir", "/var/lib/atod/spool")
	v.SetDefault("update.firmware_path", "/usr/local/bin/atod")
	v.SetDefault("update.content_path", "/var/lib/atod/content.zip")
	v.SetDefault("update.public_key_path", "")
	v.SetDefault("update.restart_delay", "1s")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "ato")
	v.SetDefault("mqtt.client_id", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("watchdog.enabled", true)
}
