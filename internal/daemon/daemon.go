package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"spool/internal/api"
	"spool/internal/app"
	"spool/internal/discovery"
	"spool/internal/logging"
)

// ErrAlreadyRunning is returned by Start when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another spool server instance is already running")

// Daemon owns the API server and the single-instance lock.
type Daemon struct {
	app      *app.App
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock
	api      *api.Server

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Address       string
	DatabasePath  string
	LockFilePath  string
	Subscriptions int
}

// New constructs a daemon around an opened app context.
func New(a *app.App) (*Daemon, error) {
	if a == nil || a.Config == nil {
		return nil, errors.New("daemon requires an app context")
	}
	logger := logging.NewComponentLogger(a.Logger, "daemon")
	lockPath := a.Config.LockPath()
	srv := api.NewServer(a.Config.Paths.APIBind, api.Deps{
		Store:      a.Store,
		Importer:   a.Importer,
		Reassembly: a.Reassembly,
		Hub:        a.Hub,
		Discovery:  discovery.Options{Extensions: a.Config.Discovery.Extensions},
		Logger:     a.Logger,
	})
	return &Daemon{
		app:      a,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		api:      srv,
	}, nil
}

// Start acquires the lock and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("spool server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.Addr()),
	)
	return nil
}

// Stop shuts the API down, cancels imports it started and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release server lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("spool server stopped")
}

// Close stops the daemon and releases the app context.
func (d *Daemon) Close() error {
	d.Stop()
	return d.app.Close()
}

// Addr returns the address the API listens on.
func (d *Daemon) Addr() string { return d.api.Addr() }

// Status reports runtime information.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Address:       d.api.Addr(),
		DatabasePath:  d.app.Store.Path(),
		LockFilePath:  d.lockPath,
		Subscriptions: d.app.Hub.Len(),
	}
}
