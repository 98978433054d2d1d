package logging

import (
	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// waLogger adapts a logrus entry to whatsmeow's logger interface.
type waLogger struct {
	entry  *logrus.Entry
	module string
}

// Whatsmeow returns a whatsmeow logger writing through entry.
func Whatsmeow(entry *logrus.Entry, module string) waLog.Logger {
	return &waLogger{entry: entry.WithField("module", module), module: module}
}

func (l *waLogger) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }
func (l *waLogger) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *waLogger) Infof(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l *waLogger) Debugf(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }

func (l *waLogger) Sub(module string) waLog.Logger {
	full := module
	if l.module != "" {
		full = l.module + "/" + module
	}
	return &waLogger{entry: l.entry.WithField("module", full), module: full}
}

var _ waLog.Logger = (*waLogger)(nil)
