package hardware

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DS18B20 sentinel values: -127 is reported when the bus has no device,
// 85 is the power-on reset value read before the first conversion.
const (
	w1Disconnected = -127000
	w1PowerOnReset = 85000
)

// W1Thermometer reads a DS18B20 through the w1_therm sysfs file. Each read
// triggers a conversion and blocks for about 750ms.
type W1Thermometer struct {
	path string
}

func NewW1Thermometer(path string) *W1Thermometer {
	return &W1Thermometer{path: path}
}

func (t *W1Thermometer) ReadCelsius() (float64, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeDisconnected, err)
	}
	return parseW1Slave(data)
}

// parseW1Slave parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(data []byte) (float64, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if len(lines) < 2 {
		return 0, fmt.Errorf("%w: short read", ErrProbeDisconnected)
	}
	if !strings.HasSuffix(lines[0], "YES") {
		return 0, ErrProbeCRC
	}
	idx := strings.LastIndex(lines[1], "t=")
	if idx < 0 {
		return 0, fmt.Errorf("%w: no reading", ErrProbeDisconnected)
	}
	milli, err := strconv.Atoi(lines[1][idx+2:])
	if err != nil {
		return 0, fmt.Errorf("parse reading %q: %w", lines[1][idx+2:], err)
	}
	switch milli {
	case w1Disconnected:
		return 0, ErrProbeDisconnected
	case w1PowerOnReset:
		return 0, fmt.Errorf("%w: power-on reset value", ErrProbeDisconnected)
	}
	return float64(milli) / 1000, nil
}
