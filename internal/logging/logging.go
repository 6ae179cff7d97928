package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus logger from config values. Packages log
// through logrus.WithField/WithFields so everything inherits this setup.
func Init(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stdout)

	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
