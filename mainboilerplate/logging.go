package mainboilerplate

import (
	log "github.com/sirupsen/logrus"
)

// LogConfig configures handling of application log events.
type LogConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"warn" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" description:"Logging level"`
	Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

// Formatter returns the log.Formatter of the configured Format.
func (cfg LogConfig) Formatter() log.Formatter {
	switch cfg.Format {
	case "json":
		return &log.JSONFormatter{}
	case "color":
		return &log.TextFormatter{ForceColors: true}
	default:
		return &log.TextFormatter{}
	}
}

// InitLog configures the standard logger. An unrecognized Level is fatal.
func InitLog(cfg LogConfig) {
	log.SetFormatter(cfg.Formatter())

	if lvl, err := log.ParseLevel(cfg.Level); err != nil {
		log.WithField("err", err).Fatal("unrecognized log level")
	} else {
		log.SetLevel(lvl)
	}
	log.WithFields(log.Fields{
		"level":   cfg.Level,
		"version": Version,
	}).Debug("initialized logging")
}
