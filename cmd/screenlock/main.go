// Command screenlock locks an X11 session until the user types their password.
//
// When installed set-user-ID root it reads the password hash from /etc/shadow and drops the
// elevated rights before connecting to the display.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/MatthiasKunnen/screenlock/pkg/auth"
	"github.com/MatthiasKunnen/screenlock/pkg/config"
	"github.com/MatthiasKunnen/screenlock/pkg/eventloop"
	"github.com/MatthiasKunnen/screenlock/pkg/grab"
	"github.com/MatthiasKunnen/screenlock/pkg/inhibit"
	"github.com/MatthiasKunnen/screenlock/pkg/lock"
	"github.com/MatthiasKunnen/screenlock/pkg/logger"
	"github.com/MatthiasKunnen/screenlock/pkg/privilege"
	"github.com/MatthiasKunnen/screenlock/pkg/secrets"
	"github.com/MatthiasKunnen/screenlock/pkg/securemem"
	"github.com/MatthiasKunnen/screenlock/pkg/timer"
	"github.com/MatthiasKunnen/screenlock/pkg/unlock"
	"github.com/MatthiasKunnen/screenlock/pkg/x11"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// run returns the exit code. Every resource is released by a deferred call, so returning is
// the only way out once secrets are in memory.
func run() int {
	configPath := flag.String("config", "", "path of the YAML configuration file\n(default $XDG_CONFIG_HOME/screenlock/config.yaml)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("screenlock", version)
		return 0
	}

	cfg, err := loadConfig(*configPath, privilege.Elevated())
	if err != nil {
		logger.New(slog.LevelInfo).Fatal("Failed to load configuration", "error", err)
	}
	log := logger.New(cfg.LogLevel)

	verifier, reference, err := newVerifier(cfg.Auth)
	if reference != nil {
		defer destroy(log, "reference", reference)
	}
	if err != nil {
		log.Error("Failed to set up password verification", "error", err)
		return 1
	}

	if err := privilege.Drop(); err != nil {
		log.Error("Failed to drop privileges", "error", err)
		return 1
	}

	input, err := securemem.New(securemem.DefaultCapacity)
	if err != nil {
		log.Error("Failed to allocate password buffer", "error", err)
		return 1
	}
	defer destroy(log, "input", input)

	conn, err := x11.Connect(cfg.Display, log.Logger)
	if err != nil {
		log.Error("Failed to open display", "error", err)
		return 1
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("Failed to close display connection", "error", err)
		}
	}()

	sleepLock := inhibitSleep(cfg.Session, log)

	targets, err := conn.Lock(x11.Palette{
		Locked: uint32(cfg.Colors.Locked),
		Input:  uint32(cfg.Colors.Input),
		Failed: uint32(cfg.Colors.Failed),
	})
	if err != nil {
		release(log, sleepLock)
		log.Error("Failed to cover screens", "error", err)
		return 1
	}

	err = grab.AcquireAll(targets, grab.Options{
		Attempts: cfg.Grab.Attempts,
		Backoff:  cfg.Grab.Backoff,
	})
	if err != nil {
		release(log, sleepLock)
		log.Error("Failed to grab input", "error", err)
		return 1
	}
	log.Info("Screen locked", "screens", len(targets))

	if hint := setLockedHint(cfg.Session, log); hint != nil {
		defer func() {
			if err := hint.SetLocked(false); err != nil {
				log.Warn("Failed to clear locked hint", "error", err)
			}
			if err := hint.Close(); err != nil {
				log.Warn("Failed to close logind connection", "error", err)
			}
		}()
	}
	lockSecrets(cfg.Session, log)
	release(log, sleepLock)

	if cfg.Session.BlankOnLock {
		if err := conn.Blank(); err != nil {
			log.Warn("Failed to blank screens", "error", err)
		}
	}

	timers := timer.New(cfg.TimerResolution, nil)

	var idle *timer.Timer
	if cfg.Session.DPMSOnIdle && cfg.Idle > 0 {
		idle = timers.NewTimer(cfg.Idle, timer.Repeat, false, timer.CallbackFunc(func(*timer.Timer, time.Time) {
			if err := conn.Blank(); err != nil {
				log.Debug("Failed to blank idle screens", "error", err)
			}
		}))
		if err := timers.Add(idle); err != nil {
			log.Error("Failed to register idle timer", "error", err)
			return 1
		}
	}

	screens := make([]unlock.Screen, len(targets))
	for i, t := range targets {
		screens[i] = t
	}

	machine, err := unlock.New(input, verifier, screens, timers, unlock.Options{
		FailFlash: cfg.FailFlash,
		Logger:    log.Logger,
	})
	if err != nil {
		log.Error("Failed to create unlock state machine", "error", err)
		return 1
	}

	loop, err := eventloop.New(eventloop.Config{
		Display: conn,
		Timers:  timers,
		Machine: machine,
		Idle:    idle,
		Restack: conn.Raise,
		Logger:  log.Logger,
	})
	if err != nil {
		log.Error("Failed to start event loop", "error", err)
		return 1
	}
	defer loop.Close()

	if err := loop.Run(); err != nil {
		log.Error("Event loop stopped", "error", err)
		return 1
	}

	if machine.State() != unlock.Succeeded {
		log.Error("Event loop returned without authentication", "state", machine.State())
		return 1
	}

	log.Info("Screen unlocked")
	return 0
}

// loadConfig reads the configuration. While elevated, the file must be readable by the real
// user and the credential files must be the system databases.
func loadConfig(path string, elevated bool) (*config.Config, error) {
	required := path != ""
	if !required {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}

	if elevated && path != "" {
		if err := privilege.CheckReadable(path); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			path = ""
		}
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}

	if elevated {
		if err := cfg.RequireSystemCredentials(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newVerifier builds the configured verifier. The returned buffer holds the password hash and
// must be destroyed by the caller, also when an error is returned.
func newVerifier(cfg config.Auth) (auth.Verifier, *securemem.Buffer, error) {
	if cfg.Method == config.AuthSu {
		v, err := auth.NewSuVerifier(cfg.User, cfg.SuTimeout)
		return v, nil, err
	}

	reference, err := securemem.New(securemem.DefaultCapacity)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Method {
	case config.AuthPasswd:
		err = auth.LoadPasswdHash(cfg.PasswdPath, cfg.User, reference)
	default:
		err = auth.LoadShadowHash(cfg.ShadowPath, cfg.User, reference)
	}
	if err != nil {
		return nil, reference, err
	}

	var v auth.Verifier = auth.NewHashVerifier(reference)
	if cfg.SuFallback {
		if su, err := auth.NewSuVerifier(cfg.User, cfg.SuTimeout); err == nil {
			v = auth.Fallback{Primary: v, Secondary: su}
		}
	}

	return v, reference, nil
}

func inhibitSleep(cfg config.Session, log *logger.Logger) io.Closer {
	if !cfg.InhibitSleep {
		return nil
	}

	inhibitor, err := inhibit.New()
	if err != nil {
		log.Warn("Failed to connect to logind, sleep is not delayed", "error", err)
		return nil
	}

	closer, err := inhibitor.Inhibit("screenlock", "Locking the screen", inhibit.ModeDelay, inhibit.WhatSleep)
	if err != nil {
		log.Warn("Failed to delay sleep", "error", err)
		return nil
	}
	return closer
}

func release(log *logger.Logger, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("Failed to release sleep inhibitor", "error", err)
	}
}

func setLockedHint(cfg config.Session, log *logger.Logger) lock.Lock {
	if !cfg.LockedHint {
		return nil
	}

	l, err := lock.NewDbusSessionLock(cfg.ID)
	if err != nil {
		log.Warn("Failed to find logind session", "error", err)
		return nil
	}
	if err := l.SetLocked(true); err != nil {
		log.Warn("Failed to set locked hint", "error", err)
	}
	return l
}

func lockSecrets(cfg config.Session, log *logger.Logger) {
	if len(cfg.SecretCollections) == 0 {
		return
	}

	s, err := secrets.New()
	if err != nil {
		log.Warn("Failed to connect to secret service", "error", err)
		return
	}
	defer s.Close()
	// The input grabs are held, so nobody could answer a prompt.
	s.PromptTimeout = 0

	locked, err := s.LockCollections(cfg.SecretCollections...)
	if err != nil {
		log.Warn("Failed to lock secret collections", "locked", len(locked), "error", err)
		return
	}
	log.Debug("Locked secret collections", "count", len(locked))
}

func destroy(log *logger.Logger, name string, b *securemem.Buffer) {
	if err := b.Destroy(); err != nil {
		log.Warn("Failed to release secure memory", "buffer", name, "error", err)
	}
}
