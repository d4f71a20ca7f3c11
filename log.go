package nebula

import (
	golog "github.com/prataprc/golog"
)

// Logger is the minimal logging contract a Connection needs, matching
// the teacher's own Logger shape (log.go) so an embedding application
// that already uses golog can pass its logger straight through.
type Logger interface {
	Errorf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Tracef(format string, v ...interface{})
}

// gologAdapter routes through the teacher's own logging library instead
// of fmt or the standard log package.
type gologAdapter struct{}

func (gologAdapter) Errorf(format string, v ...interface{}) { golog.Errorf(format, v...) }
func (gologAdapter) Warnf(format string, v ...interface{})  { golog.Warnf(format, v...) }
func (gologAdapter) Infof(format string, v ...interface{})  { golog.Infof(format, v...) }
func (gologAdapter) Debugf(format string, v ...interface{}) { golog.Debugf(format, v...) }
func (gologAdapter) Tracef(format string, v ...interface{}) { golog.Tracef(format, v...) }

// defaultLogger is used whenever Open is called with a nil Logger.
var defaultLogger Logger = gologAdapter{}
