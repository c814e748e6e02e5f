// internal/protocol/sim_device.go
package protocol

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	simSpeedLimit     = 200
	simDirectionLimit = 1800
	simGainDivisor    = 4   // proportional step is 1/4 of the remaining error
	simADCWalk        = 10  // max random change per tick
	simADCBound       = 500 // max distance from the nominal value
	simPIDCount       = 7
)

// status word bits reported by the simulated device
const (
	simStatusEnable      = 0x0008
	simStatusReady1      = 0x0010
	simStatusReady2      = 0x0020
	simStatusWheelMoving = 0x0080
	simStatusSteerMoving = 0x0100
	simErrorWatchdog     = 0x4000
)

// simADCLabels in the order reported by $60 and $10
var simADCLabels = []string{"vin", "v3v3", "v5v", "cur1", "cur2", "temp"}

// nominal values: mV, mA, milli degree
var simADCNominal = map[string]int{
	"vin":  12000,
	"v3v3": 3260,
	"v5v":  5020,
	"cur1": 30,
	"cur2": 50,
	"temp": 30354,
}

// simDevice holds the state of the simulated wheel module. It is not safe
// for concurrent use; SimulatedTransport guards it.
type simDevice struct {
	enabled bool

	setpointSpeed     int
	setpointDirection int

	wheelPos   int
	wheelSpeed int
	steerPos   int
	steerSpeed int

	watchdog    bool
	debugScreen bool

	adc    map[string]int
	adcMin map[string]int
	adcMax map[string]int

	pid       [simPIDCount]int
	pidEEPROM [simPIDCount]int
}

func newSimDevice() *simDevice {
	d := &simDevice{
		adc:    make(map[string]int, len(simADCLabels)),
		adcMin: make(map[string]int, len(simADCLabels)),
		adcMax: make(map[string]int, len(simADCLabels)),
	}
	for _, label := range simADCLabels {
		d.adc[label] = simADCNominal[label]
	}
	d.resetMinMax()
	for i := range d.pid {
		d.pid[i] = i
		d.pidEEPROM[i] = i
	}
	return d
}

func (d *simDevice) resetMinMax() {
	for _, label := range simADCLabels {
		d.adcMin[label] = d.adc[label]
		d.adcMax[label] = d.adc[label]
	}
}

// step advances the controller one tick and perturbs the analog channels
func (d *simDevice) step(rng *rand.Rand) {
	d.wheelSpeed += approach(d.wheelSpeed, d.setpointSpeed)
	d.wheelPos += d.wheelSpeed

	prev := d.steerPos
	d.steerPos += approach(d.steerPos, d.setpointDirection)
	d.steerSpeed = d.steerPos - prev

	for _, label := range simADCLabels {
		v := d.adc[label] + rng.IntN(2*simADCWalk+1) - simADCWalk
		nominal := simADCNominal[label]
		v = clamp(v, nominal-simADCBound, nominal+simADCBound)
		d.adc[label] = v
		if v < d.adcMin[label] {
			d.adcMin[label] = v
		}
		if v > d.adcMax[label] {
			d.adcMax[label] = v
		}
	}
}

// approach returns the proportional step from actual towards target. The
// step never exceeds the remaining error.
func approach(actual, target int) int {
	diff := target - actual
	if diff == 0 {
		return 0
	}
	step := diff / simGainDivisor
	if step == 0 {
		if diff > 0 {
			return 1
		}
		return -1
	}
	return step
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (d *simDevice) statusWord() int {
	status := simStatusReady1 | simStatusReady2
	if d.enabled {
		status |= simStatusEnable
	}
	if d.wheelSpeed != 0 {
		status |= simStatusWheelMoving
	}
	if d.steerSpeed != 0 {
		status |= simStatusSteerMoving
	}
	return status
}

func (d *simDevice) errorWord() int {
	if d.watchdog && !d.enabled {
		return simErrorWatchdog
	}
	return 0
}

// handle executes one comma separated command. A nil response means the
// device stays silent.
func (d *simDevice) handle(line string) ([]string, error) {
	command := strings.Split(line, ",")
	for i := range command {
		command[i] = strings.TrimSpace(command[i])
	}

	switch command[0] {
	case "$0":
		d.enabled = false
		return []string{"$0"}, nil
	case "$1":
		d.enabled = true
		return []string{"$1"}, nil
	case "$2":
		args, err := intArgs(command, 2)
		if err != nil {
			return nil, err
		}
		d.setpointSpeed = clamp(args[0], -simSpeedLimit, simSpeedLimit)
		d.setpointDirection = clamp(args[1], -simDirectionLimit, simDirectionLimit)
		return []string{"$2"}, nil
	case "$8":
		d.enabled = false
		d.setpointSpeed = 0
		d.setpointDirection = 0
		return []string{"$8", "1"}, nil
	case "$9":
		d.resetMinMax()
		return []string{"$9", "1"}, nil
	case "$10":
		response := []string{"$10"}
		for _, values := range []map[string]int{d.adc, d.adcMin, d.adcMax} {
			for _, label := range simADCLabels {
				response = append(response, strconv.Itoa(values[label]))
			}
		}
		return response, nil
	case "$11":
		return []string{"$11", strconv.Itoa(d.statusWord()), strconv.Itoa(d.errorWord())}, nil
	case "$13":
		return []string{"$13",
			strconv.Itoa(d.wheelPos),
			strconv.Itoa(d.wheelSpeed),
			strconv.Itoa(d.steerPos),
			strconv.Itoa(d.steerSpeed),
		}, nil
	case "$15":
		args, err := intArgs(command, 1)
		if err != nil {
			return nil, err
		}
		return []string{"$15", strconv.Itoa(args[0] + 1)}, nil
	case "$16":
		args, err := intArgs(command, 1)
		if err != nil {
			return nil, err
		}
		d.watchdog = args[0] == 1
		return []string{"$16"}, nil
	case "$29":
		return []string{"$29", "mock"}, nil
	case "$50":
		response := []string{"$50"}
		for _, p := range d.pid {
			response = append(response, strconv.Itoa(p))
		}
		return response, nil
	case "$51":
		args, err := intArgs(command, 2)
		if err != nil {
			return nil, err
		}
		if args[0] < 0 || args[0] >= simPIDCount {
			return nil, fmt.Errorf("%w: pid index %d out of range", ErrInvalidCommand, args[0])
		}
		d.pid[args[0]] = args[1]
		return []string{"$51", "1"}, nil
	case "$58":
		return []string{"$58", "103", "5", "2", "3"}, nil
	case "$59":
		return []string{"$59", "103", "5", "2"}, nil
	case "$60":
		response := []string{"$60", strconv.Itoa(len(simADCLabels))}
		return append(response, simADCLabels...), nil
	case "$90":
		d.debugScreen = true
		return []string{"$90"}, nil
	case "$91":
		d.debugScreen = false
		return []string{"$91"}, nil
	case "$97":
		d.pid = d.pidEEPROM
		return []string{"$97"}, nil
	case "$98":
		d.pidEEPROM = d.pid
		return []string{"$98"}, nil
	}

	return nil, nil
}

func intArgs(command []string, count int) ([]int, error) {
	if len(command) < count+1 {
		return nil, fmt.Errorf("%w: %s expects %d arguments", ErrInvalidCommand, command[0], count)
	}
	args := make([]int, count)
	for i := 0; i < count; i++ {
		v, err := strconv.Atoi(command[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v", ErrInvalidCommand, command[0], i+1, err)
		}
		args[i] = v
	}
	return args, nil
}
