package logs

import (
	"fmt"
	"io"
	"log"
	"os"
)

type Loggers struct {
	Info     *log.Logger
	Warn     *log.Logger
	Error    *log.Logger
	Critical *log.Logger
}

// New opens (appending) the named log file. An empty name or "-"
// logs to stderr instead.
func New(logName string) *Loggers {
	if logName == "" || logName == "-" {
		return NewWriter(os.Stderr)
	}
	lf, err := os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Sprintf("Unable to open log file: %v", err))
	}
	return NewWriter(lf)
}

func NewWriter(w io.Writer) *Loggers {
	l := Loggers{}
	l.Info = log.New(w, "INFO: ", log.LstdFlags)
	l.Warn = log.New(w, "WARN: ", log.LstdFlags)
	l.Error = log.New(w, "ERROR: ", log.LstdFlags)
	l.Critical = log.New(w, "CRIT: ", log.LstdFlags)
	return &l
}
