package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerDebugGate(t *testing.T) {
	log := NewDefaultLogger("test", false)
	assert.False(t, log.DebugEnabled())

	log.SetDebug(true)
	assert.True(t, log.DebugEnabled())

	// must not panic regardless of level
	log.Debugf("debug %d", 1)
	log.Infof("info %s", "x")
	log.Warnf("warn")
	log.Errorf("error %v", assert.AnError)
}

func TestNopLoggerIsSilent(t *testing.T) {
	log := NewNopLogger()
	assert.False(t, log.DebugEnabled())
	log.Debugf("nothing")
	log.Infof("nothing")
	log.Warnf("nothing")
	log.Errorf("nothing")
}
