package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"ato_controller/internal/models"
	"ato_controller/internal/service"
	"ato_controller/internal/updater"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error
	signUpOpen    bool
	setupErr      error
	changeErr     error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
	lastChangeID       int
	lastChangeNew      string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) SignUpOpen() (bool, error) { return m.signUpOpen, m.setupErr }
func (m *mockAuth) ChangePassword(userID int, current, next string) error {
	m.lastChangeID = userID
	m.lastChangeNew = next
	return m.changeErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockControl struct {
	mu sync.Mutex

	maintErr    error
	resetErr    error
	execErr     error
	lastMaint   *bool
	resetCalled int
	commands    []models.Command
}

func (m *mockControl) Run(ctx context.Context, tick time.Duration) {}
func (m *mockControl) SetMaintenance(ctx context.Context, enable bool) error {
	m.lastMaint = &enable
	return m.maintErr
}
func (m *mockControl) ResetError(ctx context.Context) error {
	m.resetCalled++
	return m.resetErr
}
func (m *mockControl) Execute(ctx context.Context, cmd models.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return m.execErr
}

func (m *mockControl) executed() []models.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Command(nil), m.commands...)
}

type mockSettings struct {
	device   models.DeviceConfig
	rangeErr error
	nameErr  error
	lastMin  float64
	lastMax  float64
	lastName string
}

func (m *mockSettings) Device() models.DeviceConfig { return m.device }
func (m *mockSettings) SetTempRange(ctx context.Context, minTemp, maxTemp float64) error {
	m.lastMin, m.lastMax = minTemp, maxTemp
	return m.rangeErr
}
func (m *mockSettings) SetDeviceName(ctx context.Context, name string) error {
	m.lastName = name
	if m.nameErr == nil {
		m.device.DeviceName = name
	}
	return m.nameErr
}
func (m *mockSettings) InstalledContentVersion() string { return "" }

type mockMonitoring struct {
	state      models.Status
	err        error
	history    []models.TemperatureReading
	historyErr error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.Status, error) {
	return m.state, m.err
}
func (m *mockMonitoring) TemperatureHistory(ctx context.Context) ([]models.TemperatureReading, error) {
	return m.history, m.historyErr
}

type mockUpdates struct {
	avail    models.Availability
	checkErr error
	kind     updater.Kind
	applyErr error
	status   models.UpdateStatus
	applied  int
}

func (m *mockUpdates) Check(ctx context.Context) (models.Availability, error) {
	return m.avail, m.checkErr
}
func (m *mockUpdates) Apply(ctx context.Context) (updater.Kind, error) {
	m.applied++
	return m.kind, m.applyErr
}
func (m *mockUpdates) Status() models.UpdateStatus { return m.status }
func (m *mockUpdates) Active() bool                { return m.status.InProgress }

type mockEventLog struct {
	resp      []models.Event
	err       error
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
	lastLimit int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLimit = f.Limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func doRequest(r http.Handler, method, target, token string, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader(token) {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
