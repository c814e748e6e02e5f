// internal/swm/status.go
package swm

import "strconv"

// Bit names one flag of a $11 word
type Bit struct {
	Name string
	Mask int
}

// StatusWordBits decode the first $11 field
var StatusWordBits = []Bit{
	{"enable", 0x0008},
	{"controller_ready_1", 0x0010},
	{"controller_ready_2", 0x0020},
	{"wheel_moving", 0x0080},
	{"steer_moving", 0x0100},
	{"joystick_active", 0x0200},
	{"joystick_m", 0x0400},
	{"alarm", 0x8000},
}

// ErrorWordBits decode the second $11 field
var ErrorWordBits = []Bit{
	{"mae_limit_plus", 0x0001},
	{"mae_limit_min", 0x0002},
	{"mae_counter_error", 0x0004},
	{"vin_alarm", 0x0008},
	{"v5_alarm", 0x0010},
	{"v3v3_alarm", 0x0020},
	{"current1_alarm", 0x0200},
	{"current2_alarm", 0x0400},
	{"command_fault", 0x0800},
	{"watchdog", 0x4000},
	{"alarm", 0x8000},
}

const enableMask = 0x0008

// decodeBits maps every bit in table to its state in word
func decodeBits(table []Bit, word int) map[string]bool {
	flags := make(map[string]bool, len(table))
	for _, bit := range table {
		flags[bit.Name] = word&bit.Mask != 0
	}
	return flags
}

// statusWords extracts the status and error words of a $11 record. ok is
// false when the record is missing or malformed.
func statusWords(r Record) (status, errWord int, ok bool) {
	fields := r.Fields()
	if len(fields) < 2 {
		return 0, 0, false
	}
	status, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, false
	}
	errWord, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, false
	}
	return status, errWord, true
}
