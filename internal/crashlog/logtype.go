package crashlog

import (
	"path/filepath"
	"strings"
)

// Log type labels.
const (
	LogTypeCrashDump = "Crash Dump"
	LogTypeSystemLog = "System Log"
	LogTypeTraceLog  = "Trace Log"
	LogTypeErrorLog  = "Error Log"
)

var extensionLogTypes = map[string]string{
	".dump":  LogTypeCrashDump,
	".dmp":   LogTypeCrashDump,
	".crash": LogTypeCrashDump,
	".trace": LogTypeTraceLog,
}

type keywordRule struct {
	keyword string
	logType string
}

// Checked in order after the extension lookup.
var contentLogTypes = []keywordRule{
	{keyword: "FATAL EXCEPTION", logType: LogTypeCrashDump},
	{keyword: "minidump", logType: LogTypeCrashDump},
	{keyword: "*** *** ***", logType: LogTypeCrashDump},
	{keyword: "kernel:", logType: LogTypeSystemLog},
	{keyword: "systemd[", logType: LogTypeSystemLog},
}

// IdentifyLogType labels a log from its filename extension, then its content.
// It always returns one of the LogType constants.
func IdentifyLogType(filename, content string) string {
	if t, ok := extensionLogTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	for _, rule := range contentLogTypes {
		if strings.Contains(content, rule.keyword) {
			return rule.logType
		}
	}
	return LogTypeErrorLog
}
