package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	Info  = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	Warn  = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	Error = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	Debug = log.New(io.Discard, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
)

// Options controls where logs go and how the log file is rotated.
type Options struct {
	Dir        string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init initializes the loggers to write to both stdout and a rotating file
func Init(opts Options) error {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return err
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "sqlinsight.log"),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	flags := log.Ldate | log.Ltime | log.Lshortfile

	Info = log.New(multiWriter, "INFO: ", flags)
	Warn = log.New(multiWriter, "WARN: ", flags)
	Error = log.New(multiWriter, "ERROR: ", flags)
	Debug = log.New(io.Discard, "DEBUG: ", flags)

	switch strings.ToLower(opts.Level) {
	case "debug":
		Debug.SetOutput(multiWriter)
	case "warn":
		Info.SetOutput(io.Discard)
	case "error":
		Info.SetOutput(io.Discard)
		Warn.SetOutput(io.Discard)
	}

	return nil
}

// Discard silences every logger. Used by tests.
func Discard() {
	for _, l := range []*log.Logger{Info, Warn, Error, Debug} {
		l.SetOutput(io.Discard)
	}
}
