package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/config"
	"github.com/nerrad567/watermeter-ingest/internal/meter"
)

// Supported output formats.
const (
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

const (
	// dirPermissions is the mode for created output directories.
	dirPermissions = 0o750

	// filePermissions is the mode for created output files.
	filePermissions = 0o644

	// generatedTimeLayout is the UTC run time used in generated file names.
	generatedTimeLayout = "20060102T150405"

	// fallbackName replaces a device id that slugs to nothing.
	fallbackName = "meter"

	// timeLayout formats reading times in every format. Fractional seconds
	// appear only when present, so whole-second rows stay RFC3339.
	timeLayout = time.RFC3339Nano
)

// extensions maps each format to the extension of generated file names.
var extensions = map[string]string{
	FormatCSV:    ".csv",
	FormatJSON:   ".json",
	FormatSQLite: ".db",
}

// Meta describes the run a table belongs to.
type Meta struct {
	RunID string

	// DeviceID names generated files. Empty falls back to the table's dev-id.
	DeviceID string

	// Time is the run start; it names generated files. Zero means now.
	Time time.Time
}

// Saver writes reading tables to the configured output.
type Saver struct {
	out config.OutputConfig
	db  config.DatabaseConfig
}

// NewSaver creates a Saver. db is only used by the sqlite format.
func NewSaver(out config.OutputConfig, db config.DatabaseConfig) *Saver {
	return &Saver{out: out, db: db}
}

// Save writes table and returns the path written.
//
// The format is resolved before anything touches the filesystem, so an
// unknown format leaves no file behind.
//
// Parameters:
//   - ctx: Context for cancellation (sqlite only)
//   - table: Readings to save, normally after meter.DeriveUsage
//   - meta: Run id, device id and time
//
// Returns:
//   - string: Path of the written file
//   - error: ErrUnknownFormat or ErrWriteFailed
func (s *Saver) Save(ctx context.Context, table meter.Table, meta Meta) (string, error) {
	deviceID := meta.DeviceID
	if r, ok := table.Latest(); ok && deviceID == "" {
		deviceID = r.DevID
	}
	if meta.Time.IsZero() {
		meta.Time = time.Now()
	}

	path, format, err := Resolve(s.out, deviceID, meta.Time)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return "", fmt.Errorf("%w: creating directory: %w", ErrWriteFailed, err)
	}

	switch format {
	case FormatCSV:
		err = writeFile(path, func(f *os.File) error { return writeCSV(f, table) })
	case FormatJSON:
		err = writeFile(path, func(f *os.File) error { return writeJSON(f, table) })
	case FormatSQLite:
		err = writeSQLite(ctx, path, s.db, table, meta.RunID)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// Resolve determines the output file and format.
//
// The format comes from out.Format, else from the path extension
// (.csv, .json, .db, .sqlite, .sqlite3), else csv. A path ending in "/" or
// naming an existing directory gets a generated file name of the form
// "<slug(deviceID)>-<yyyymmddThhmmss>.<ext>" using the UTC run time.
func Resolve(out config.OutputConfig, deviceID string, runTime time.Time) (path, format string, err error) {
	path = out.Path
	isDir := strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator))
	if !isDir {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			isDir = true
		} else if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
			return "", "", fmt.Errorf("%w: %w", ErrWriteFailed, statErr)
		}
	}

	format = strings.ToLower(strings.TrimSpace(out.Format))
	if format == "" && !isDir {
		format = formatFromExtension(path)
	}
	if format == "" {
		format = FormatCSV
	}
	if _, ok := extensions[format]; !ok {
		return "", "", fmt.Errorf("%w: %q (choose from csv, json, sqlite)", ErrUnknownFormat, out.Format)
	}

	if isDir {
		path = filepath.Join(path, GeneratedName(deviceID, runTime, format))
	}
	return path, format, nil
}

// GeneratedName returns the file name used when the output path is a directory.
func GeneratedName(deviceID string, runTime time.Time, format string) string {
	name := slug.Make(deviceID)
	if name == "" {
		name = fallbackName
	}
	return name + "-" + runTime.UTC().Format(generatedTimeLayout) + extensions[format]
}

func formatFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	}
	return ""
}

// writeFile creates path and hands it to write, reporting close errors.
func writeFile(path string, write func(f *os.File) error) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrWriteFailed, cerr)
		}
	}()

	if err := write(f); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	return nil
}
