package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dev-tams/sqlbackup/internal/archive"
	"github.com/dev-tams/sqlbackup/internal/artifact"
	"github.com/dev-tams/sqlbackup/internal/backuperr"
	"github.com/dev-tams/sqlbackup/internal/config"
	"github.com/dev-tams/sqlbackup/internal/database"
	"github.com/dev-tams/sqlbackup/internal/dump"
	"github.com/dev-tams/sqlbackup/internal/notify"
	"github.com/dev-tams/sqlbackup/internal/storage"
)

const notificationTimeout = 5 * time.Second

// Source is the open connection a run dumps from.
type Source interface {
	dump.Source
	Close() error
}

var (
	openSource = func(ctx context.Context, cfg config.ConnectionConfig) (Source, error) {
		return database.Open(ctx, cfg)
	}
	newSink = storage.FromConfig
	now     = time.Now
)

// Options are per-invocation overrides of the loaded configuration.
type Options struct {
	// Name replaces the default {db}_{timestamp}.{ext} artifact name.
	Name string
	// Archive overrides backup.archive when set.
	Archive string
	// NoUpload skips the configured sink.
	NoUpload bool
}

// Result describes one run. Artifact is populated as soon as the local file
// is final, including when the upload afterwards fails.
type Result struct {
	Database string
	Artifact artifact.Artifact
	Sink     string
	Uploaded bool
	Duration time.Duration
}

// RunBackup dumps the configured database to a local artifact, optionally
// archives it, and hands it to the configured sink.
func RunBackup(ctx context.Context, cfg *config.Config, opts Options) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	dispatcher, err := notify.NewDispatcher(cfg.Notifications)
	if err != nil {
		return Result{}, err
	}

	started := now()
	res, err := runBackup(ctx, cfg, opts, started)
	res.Duration = now().Sub(started)

	if err != nil {
		log.WithFields(log.Fields{
			"db":    res.Database,
			"phase": phaseOf(err),
		}).WithError(err).Error("backup failed")
	} else {
		log.WithFields(log.Fields{
			"db":       res.Database,
			"path":     res.Artifact.Path,
			"bytes":    res.Artifact.Size,
			"sink":     res.Sink,
			"uploaded": res.Uploaded,
			"duration": res.Duration.Round(time.Millisecond),
		}).Info("backup complete")
	}

	notifyResult(ctx, dispatcher, res, err)
	return res, err
}

func runBackup(ctx context.Context, cfg *config.Config, opts Options, started time.Time) (Result, error) {
	res := Result{Database: cfg.Database.Database}

	archiveSetting := cfg.Backup.Archive
	if opts.Archive != "" {
		archiveSetting = opts.Archive
	}
	format, err := archive.ParseFormat(archiveSetting)
	if err != nil {
		return res, err
	}

	var sink storage.Sink
	if !opts.NoUpload {
		sink, err = newSink(ctx, cfg.Storage)
		if err != nil {
			return res, err
		}
	}
	if sink != nil {
		res.Sink = sink.Name()
	}

	finalName, rawName := artifactNames(cfg, opts, format, started)
	dir, err := filepath.Abs(cfg.Backup.Path)
	if err != nil {
		return res, backuperr.New(backuperr.ErrIO, "resolve destination directory", err).WithPath(cfg.Backup.Path)
	}

	src, err := openSource(ctx, cfg.Database)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing connection")
		}
	}()

	composer := &dump.Composer{
		Serializer: dump.Serializer{
			RowsPerStatement:   cfg.Backup.RowsPerStatement,
			NoBackslashEscapes: cfg.Backup.NoBackslashEscapes,
		},
		Database:          cfg.Database.Database,
		Charset:           cfg.Database.Charset,
		Started:           started,
		SingleTransaction: cfg.Backup.SingleTransaction,
	}

	art, err := composer.Compose(ctx, src, filepath.Join(dir, rawName))
	if err != nil {
		return res, err
	}

	if format != archive.None {
		art, err = archive.Package(art.Path, filepath.Join(dir, finalName), format)
		if err != nil {
			return res, err
		}
	}
	res.Artifact = art

	if sink == nil {
		return res, nil
	}

	if err := sink.Upload(ctx, art.Path, art.Name); err != nil {
		return res, backuperr.New(backuperr.ErrUpload, "upload to "+sink.Name(), err).WithPath(art.Path)
	}
	res.Uploaded = true

	if err := ApplyRetention(ctx, cfg.Database.Database, cfg.Retention, sink); err != nil {
		return res, backuperr.New(backuperr.ErrUpload, "retention on "+sink.Name(), err)
	}

	return res, nil
}

// artifactNames returns the final artifact name and the name the raw dump is
// composed under. They are equal when no archive is requested.
func artifactNames(cfg *config.Config, opts Options, format archive.Format, started time.Time) (string, string) {
	name := opts.Name
	if name == "" {
		name = cfg.Backup.Filename
	}
	if name == "" {
		name = artifact.DefaultName(cfg.Database.Database, format.Extension(), started)
	}
	if format == archive.None {
		return name, name
	}
	return name, artifact.RawName(name, format.Extension())
}

func phaseOf(err error) string {
	var be *backuperr.Error
	if errors.As(err, &be) {
		return be.Phase
	}
	return "setup"
}

func notifyResult(ctx context.Context, dispatcher *notify.Dispatcher, res Result, runErr error) {
	if dispatcher.Len() == 0 {
		return
	}

	event := notify.Event{
		DB:       res.Database,
		Status:   notify.StatusSuccess,
		Bytes:    res.Artifact.Size,
		Path:     res.Artifact.Path,
		Sink:     res.Sink,
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
	if runErr != nil {
		event.Status = notify.StatusFailure
		event.Error = runErr.Error()
	}

	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	if err := dispatcher.Notify(notifyCtx, event); err != nil {
		log.WithFields(log.Fields{"db": res.Database, "status": event.Status}).
			WithError(err).Warn("notification failed")
	}
}

func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}

// CheckConnection opens the configured database and returns its base tables
// in enumeration order without writing anything.
func CheckConnection(ctx context.Context, cfg *config.Config) ([]dump.Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src, err := openSource(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tables, err := dump.ListTables(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", cfg.Database.Database, err)
	}
	return tables, nil
}
