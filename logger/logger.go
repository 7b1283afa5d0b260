package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	InfoLogger  *logrus.Logger
	WarnLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

// InitLoggers sets up the shared loggers. Logs go to stdout and to a
// rotated file under logs/.
func InitLoggers() {
	rotator := &lumberjack.Logger{
		Filename:   "logs/app.log",
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	out := io.MultiWriter(os.Stdout, rotator)

	InfoLogger = newLogger(out, logrus.InfoLevel)
	WarnLogger = newLogger(out, logrus.WarnLevel)
	ErrorLogger = newLogger(out, logrus.ErrorLevel)
}

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

func init() {
	// Packages log during their own init; make sure the loggers exist even
	// before main calls InitLoggers.
	if InfoLogger == nil {
		InitLoggers()
	}
}
