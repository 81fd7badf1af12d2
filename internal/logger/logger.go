package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds a JSON logger tagged with the service name. Every log line
// carries service, hostname and an RFC3339 timestamp.
func New(service, level string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	host, _ := os.Hostname()
	return l.WithFields(logrus.Fields{"service": service, "hostname": host})
}
