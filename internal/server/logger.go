package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOptions controls NewLogger.
type LogOptions struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	// Dir, when set, receives <date>-server.log (all levels) and
	// <date>-error.log (error and above).
	Dir string
}

// NewLogger builds the process logger. Console output always goes to
// stdout; file output is added when opts.Dir is set, and the file names
// follow the date reported by now, which defaults to time.Now. The
// returned cleanup flushes and closes the log files.
func NewLogger(opts LogOptions, now func() time.Time) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	if now == nil {
		now = time.Now
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(enc)
	} else {
		encoder = zapcore.NewConsoleEncoder(enc)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level),
	}
	var files []*dailyFile
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		fileEnc := zapcore.NewJSONEncoder(enc)

		for _, target := range []struct {
			suffix string
			level  zapcore.LevelEnabler
		}{
			{"server.log", level},
			{"error.log", zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return l >= zapcore.ErrorLevel && level.Enabled(l)
			})},
		} {
			f := &dailyFile{dir: opts.Dir, suffix: target.suffix, now: now}
			if err := f.rotate(); err != nil {
				closeFiles()
				return nil, nil, err
			}
			files = append(files, f)
			cores = append(cores, zapcore.NewCore(fileEnc, f, target.level))
		}
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	cleanup := func() {
		_ = logger.Sync()
		closeFiles()
	}
	return logger, cleanup, nil
}

// dailyFile is a zapcore.WriteSyncer writing to <dir>/<date>-<suffix>.
// It switches to a new file on the first write of each day.
type dailyFile struct {
	dir    string
	suffix string
	now    func() time.Time

	mu  sync.Mutex
	day string
	f   *os.File
}

// rotate opens the file for the current day if it is not already open.
// The caller holds mu, except during construction.
func (d *dailyFile) rotate() error {
	day := d.now().Format("2006-01-02")
	if d.f != nil && day == d.day {
		return nil
	}
	name := filepath.Join(d.dir, day+"-"+d.suffix)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if d.f != nil {
		_ = d.f.Close()
	}
	d.f, d.day = f, day
	return nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotate(); err != nil {
		return 0, err
	}
	return d.f.Write(p)
}

func (d *dailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	return d.f.Sync()
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
