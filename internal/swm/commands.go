// internal/swm/commands.go
package swm

import (
	"fmt"
	"strings"
)

// Wire command codes
const (
	CmdDisable         = "$0"
	CmdEnable          = "$1"
	CmdSetpoints       = "$2"
	CmdReset           = "$8"
	CmdResetMinMaxADC  = "$9"
	CmdGetADC          = "$10"
	CmdGetStatus       = "$11"
	CmdGetMotion       = "$13"
	CmdEcho            = "$15"
	CmdWatchdog        = "$16"
	CmdGetFirmware     = "$29"
	CmdGetPID          = "$50"
	CmdSetPID          = "$51"
	CmdGetProcessTimes = "$58"
	CmdGetCounters     = "$59"
	CmdGetADCLabels    = "$60"
	CmdDebugScreenOn   = "$90"
	CmdDebugScreenOff  = "$91"
	CmdLoadParameters  = "$97"
	CmdStoreParameters = "$98"
)

// Separators of the wire format
const (
	RecordSeparator = "|"
	FieldSeparator  = ","
)

// PollCommand is re-issued by the write loop every update period. A Once
// command is only sent while its code has no cached response.
type PollCommand struct {
	Command string
	Once    bool
}

// DefaultPollCommands is the poll set of a wheel module
var DefaultPollCommands = []PollCommand{
	{Command: CmdGetADCLabels, Once: true},
	{Command: CmdGetFirmware, Once: true},
	{Command: CmdResetMinMaxADC, Once: true},
	{Command: CmdGetPID, Once: true},

	{Command: CmdGetADC},
	{Command: CmdGetStatus},
	{Command: CmdGetMotion},
	{Command: CmdGetProcessTimes},
	{Command: CmdGetCounters},
}

// CommandCode returns the code part of a command line, e.g. "$2" for "$2,10,0"
func CommandCode(cmd string) string {
	code, _, _ := strings.Cut(strings.TrimSpace(cmd), FieldSeparator)
	return strings.TrimSpace(code)
}

func formatCommand(code string, args ...int) string {
	var b strings.Builder
	b.WriteString(code)
	for _, arg := range args {
		fmt.Fprintf(&b, "%s%d", FieldSeparator, arg)
	}
	return b.String()
}

// parseFrame splits one inbound line into records. Empty records and empty
// fields are dropped.
func parseFrame(line string) []Record {
	var records []Record
	for _, item := range strings.Split(line, RecordSeparator) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		var record Record
		for _, field := range strings.Split(item, FieldSeparator) {
			if field != "" {
				record = append(record, field)
			}
		}
		if len(record) > 0 {
			records = append(records, record)
		}
	}
	return records
}
