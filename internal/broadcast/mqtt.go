package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"ato_controller/internal/logger"
	"ato_controller/internal/models"
)

const (
	connectTimeout = 10 * time.Second
	availOnline    = "online"
	availOffline   = "offline"
)

type MQTTConfig struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	ClientID    string
}

// MQTT publishes the retained status to <prefix>/<device>/status and
// forwards commands received on <prefix>/<device>/command.
type MQTT struct {
	client       pahomqtt.Client
	statusTopic  string
	commandTopic string
	availTopic   string
	onCommand    func(models.Command)
	log          *logger.Logger
}

// NewMQTT connects to the broker. onCommand runs on the paho callback
// goroutine.
func NewMQTT(cfg MQTTConfig, device string, onCommand func(models.Command), log *logger.Logger) (*MQTT, error) {
	if log == nil {
		log = logger.Nop()
	}
	base := cfg.TopicPrefix + "/" + device
	m := &MQTT{
		statusTopic:  base + "/status",
		commandTopic: base + "/command",
		availTopic:   base + "/availability",
		onCommand:    onCommand,
		log:          log,
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = device
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(m.availTopic, availOffline, 1, true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			m.log.Infow("mqtt_connected", "broker", cfg.Broker)
			c.Publish(m.availTopic, 1, true, availOnline)
			c.Subscribe(m.commandTopic, 1, m.handleCommand)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			m.log.Warnw("mqtt_connection_lost", "err", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	m.client = pahomqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return m, nil
}

// Broadcast publishes without waiting for the broker acknowledgement.
func (m *MQTT) Broadcast(st models.Status) {
	payload, err := json.Marshal(st)
	if err != nil {
		m.log.Errorw("status_encode_failed", "err", err)
		return
	}
	m.client.Publish(m.statusTopic, 0, true, payload)
}

func (m *MQTT) handleCommand(_ pahomqtt.Client, msg pahomqtt.Message) {
	cmd, err := DecodeCommand(msg.Payload())
	if err != nil {
		m.log.Warnw("mqtt_command_rejected", "topic", msg.Topic(), "err", err)
		return
	}
	if m.onCommand != nil {
		m.onCommand(cmd)
	}
}

// Close marks the device offline and disconnects.
func (m *MQTT) Close() {
	m.client.Publish(m.availTopic, 1, true, availOffline).WaitTimeout(time.Second)
	m.client.Disconnect(1000)
}

// DecodeCommand parses a command frame. Frames that ask for nothing are
// rejected.
func DecodeCommand(data []byte) (models.Command, error) {
	var cmd models.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Maintenance == nil && !cmd.ResetError {
		return cmd, fmt.Errorf("empty command")
	}
	return cmd, nil
}
