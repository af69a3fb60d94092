package dnscache

import (
	"fmt"
	"os"
	"path"
	"runtime"

	logger "github.com/sirupsen/logrus"
)

const CurrentVersion = "v1.0.2"

var log = &logger.Logger{
	Out: os.Stdout,
	Formatter: &logger.TextFormatter{
		CallerPrettyfier: func(caller *runtime.Frame) (function string, file string) {
			function = ""
			_, filename_ := path.Split(caller.File)
			file = fmt.Sprintf("%s:%d", filename_, caller.Line)
			return
		},
		TimestampFormat: "2006-01-02T15:04:05",
	},
	Level:        logger.InfoLevel,
	ReportCaller: true,
}

// SetLogLevel changes the package log level, e.g. "debug", "info", "warn".
func SetLogLevel(level string) {
	logLevel_, err := logger.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid log level: %v", err)
		return
	}
	log.SetLevel(logLevel_)
}
