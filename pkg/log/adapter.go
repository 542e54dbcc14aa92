package log

import "github.com/sirupsen/logrus"

// BadgerAdapter satisfies badger.Logger on top of a logrus entry.
// Badger reports table and memtable housekeeping at Info; that chatter is demoted to Debug
// so a probe cache never drowns out batch progress.
type BadgerAdapter struct {
	entry *logrus.Entry
}

// NewBadgerAdapter tags every line with component=badger
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry: entry.WithField("component", "badger")}
}

func (l *BadgerAdapter) Errorf(f string, v ...interface{})   { l.entry.Errorf(f, v...) }
func (l *BadgerAdapter) Warningf(f string, v ...interface{}) { l.entry.Warnf(f, v...) }
func (l *BadgerAdapter) Infof(f string, v ...interface{})    { l.entry.Debugf(f, v...) }
func (l *BadgerAdapter) Debugf(f string, v ...interface{})   { l.entry.Tracef(f, v...) }
