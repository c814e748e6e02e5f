// internal/swm/readers.go
package swm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNoResponse      = errors.New("no response from wheel")
	ErrUnknownADCLabel = errors.New("unknown adc label")
	ErrMalformedRecord = errors.New("malformed record")
)

// ADCReading is one analog channel in milli-units (mV, mA, m°C).
// Available is false until both $60 and $10 were answered.
type ADCReading struct {
	Label     string `json:"label"`
	Current   int    `json:"current"`
	Min       int    `json:"min"`
	Max       int    `json:"max"`
	Available bool   `json:"available"`
}

// Scaled converts the reading to whole units
func (r ADCReading) Scaled() (current, min, max decimal.Decimal) {
	return decimal.New(int64(r.Current), -3),
		decimal.New(int64(r.Min), -3),
		decimal.New(int64(r.Max), -3)
}

// Motion is the decoded $13 record
type Motion struct {
	WheelPosition int `json:"wheel_position"`
	WheelSpeed    int `json:"wheel_speed"`
	SteerPosition int `json:"steer_position"`
	SteerSpeed    int `json:"steer_speed"`
}

// Response returns the latest record received for code
func (e *Engine) Response(code string) (Record, bool) {
	return e.cache.Get(code)
}

// Responses returns a copy of the whole response cache
func (e *Engine) Responses() map[string]Record {
	return e.cache.Snapshot()
}

// Firmware joins the fields of the $29 response. Empty until received.
func (e *Engine) Firmware() string {
	r, ok := e.cache.Get(CmdGetFirmware)
	if !ok {
		return ""
	}
	return strings.Join(r.Fields(), FieldSeparator)
}

// Enabled reports the enable bit of the latest $11 response. There is no
// local enabled flag: before the first $11 it is false.
func (e *Engine) Enabled() bool {
	r, ok := e.cache.Get(CmdGetStatus)
	if !ok {
		return false
	}
	status, _, ok := statusWords(r)
	return ok && status&enableMask != 0
}

// StatusFlags decodes the $11 status word. All flags are false before the
// first valid $11.
func (e *Engine) StatusFlags() map[string]bool {
	r, _ := e.cache.Get(CmdGetStatus)
	status, _, _ := statusWords(r)
	return decodeBits(StatusWordBits, status)
}

// ErrorFlags decodes the $11 error word
func (e *Engine) ErrorFlags() map[string]bool {
	r, _ := e.cache.Get(CmdGetStatus)
	_, errWord, _ := statusWords(r)
	return decodeBits(ErrorWordBits, errWord)
}

// adcLabels returns the labels of the $60 response, which is
// "$60,<count>,<label>...". Responses without the count are accepted too.
func adcLabels(r Record) []string {
	fields := r.Fields()
	if len(fields) == 0 {
		return nil
	}
	if n, err := strconv.Atoi(fields[0]); err == nil && n == len(fields)-1 {
		return fields[1:]
	}
	return fields
}

// ADCLabels returns the channel labels reported by $60
func (e *Engine) ADCLabels() []string {
	r, ok := e.cache.Get(CmdGetADCLabels)
	if !ok {
		return nil
	}
	return adcLabels(r)
}

// ADC looks up a channel by case-insensitive label. Before $60 has been
// answered every label is unknown; before $10 the reading is unavailable.
func (e *Engine) ADC(label string) (ADCReading, error) {
	labels := e.ADCLabels()
	for i, l := range labels {
		if strings.EqualFold(l, label) {
			values, _ := e.cache.Get(CmdGetADC)
			return adcReading(l, i, len(labels), values), nil
		}
	}

	if labels == nil {
		return ADCReading{Label: label}, fmt.Errorf("%w: %s (labels not received)", ErrUnknownADCLabel, label)
	}
	return ADCReading{Label: label}, fmt.Errorf("%w: %s", ErrUnknownADCLabel, label)
}

// ADCChannels returns every channel in $60 order
func (e *Engine) ADCChannels() []ADCReading {
	labels := e.ADCLabels()
	values, _ := e.cache.Get(CmdGetADC)

	readings := make([]ADCReading, 0, len(labels))
	for i, l := range labels {
		readings = append(readings, adcReading(l, i, len(labels), values))
	}
	return readings
}

// adcReading picks channel i from a $10 record laid out as all currents,
// then all minimums, then all maximums
func adcReading(label string, i, n int, values Record) ADCReading {
	reading := ADCReading{Label: label}
	fields := values.Fields()
	if len(fields) < 3*n {
		return reading
	}

	var err error
	if reading.Current, err = strconv.Atoi(fields[i]); err != nil {
		return ADCReading{Label: label}
	}
	if reading.Min, err = strconv.Atoi(fields[n+i]); err != nil {
		return ADCReading{Label: label}
	}
	if reading.Max, err = strconv.Atoi(fields[2*n+i]); err != nil {
		return ADCReading{Label: label}
	}
	reading.Available = true
	return reading
}

func (e *Engine) intFields(code string, min int) ([]int, error) {
	r, ok := e.cache.Get(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, code)
	}
	fields := r.Fields()
	if len(fields) < min {
		return nil, fmt.Errorf("%w: %s has %d fields", ErrMalformedRecord, code, len(fields))
	}
	values := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s field %d: %q", ErrMalformedRecord, code, i+1, f)
		}
		values[i] = v
	}
	return values, nil
}

// Motion decodes the latest $13 response
func (e *Engine) Motion() (Motion, error) {
	v, err := e.intFields(CmdGetMotion, 4)
	if err != nil {
		return Motion{}, err
	}
	return Motion{
		WheelPosition: v[0],
		WheelSpeed:    v[1],
		SteerPosition: v[2],
		SteerSpeed:    v[3],
	}, nil
}

// PIDParameters decodes the latest $50 response
func (e *Engine) PIDParameters() ([]int, error) {
	return e.intFields(CmdGetPID, 1)
}

// ProcessTimes decodes the latest $58 response
func (e *Engine) ProcessTimes() ([]int, error) {
	return e.intFields(CmdGetProcessTimes, 1)
}

// Counters decodes the latest $59 response
func (e *Engine) Counters() ([]int, error) {
	return e.intFields(CmdGetCounters, 1)
}
