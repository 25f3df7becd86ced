package logging

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultFileMaxSizeMB  = 50
	DefaultFileMaxBackups = 5
)

type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// NewFileOutput returns a size-rotated log file writer. Old files are renamed
// with a timestamp suffix next to Path.
func NewFileOutput(options FileOptions) io.WriteCloser {
	maxSize := options.MaxSizeMB
	if maxSize <= 0 {
		maxSize = DefaultFileMaxSizeMB
	}
	maxBackups := options.MaxBackups
	if maxBackups <= 0 {
		maxBackups = DefaultFileMaxBackups
	}
	return &lumberjack.Logger{
		Filename:   options.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   options.Compress,
	}
}
