package logger

import "testing"

func TestLogUsableBeforeInit(t *testing.T) {
	if Log == nil {
		t.Fatal("Log must be ready at import time")
	}
	// Library packages log without calling Init; this must not panic.
	Log.WithField("stage", "segmentation").Debug("smoke entry")
}

func TestInitKeepsInstance(t *testing.T) {
	before := Log
	Init()
	if Log != before {
		t.Fatal("Init must reconfigure the shared logger, not replace it")
	}
}
