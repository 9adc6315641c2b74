package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestConfigure(t *testing.T) {
	defer Configure("info")

	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}

	for _, tt := range tests {
		Configure(tt.level)
		if Logger.GetLevel() != tt.expected {
			t.Errorf("Configure(%q): expected %s, got %s", tt.level, tt.expected, Logger.GetLevel())
		}
	}
}
