package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/keyxmakerx/healthcore/internal/app"
	"github.com/keyxmakerx/healthcore/internal/config"
	"github.com/keyxmakerx/healthcore/internal/plugins/auth"
	"github.com/keyxmakerx/healthcore/internal/plugins/smtpsetup"
)

type stubAuth struct {
	auth.AuthService
	err    error
	called bool
	delay  time.Duration
}

func (s *stubAuth) Bootstrap(_ context.Context, _, _ string) error {
	s.called = true
	time.Sleep(s.delay)
	return s.err
}

type stubSetup struct {
	smtpsetup.Service
	called    bool
	remaining time.Duration
}

func (s *stubSetup) Reconcile(ctx context.Context, _ config.SMTPConfig) error {
	s.called = true
	if d, ok := ctx.Deadline(); ok {
		s.remaining = time.Until(d)
	}
	return ctx.Err()
}

func TestInstall_ReconcileGetsItsOwnDeadline(t *testing.T) {
	a := &stubAuth{delay: 50 * time.Millisecond}
	setup := &stubSetup{}

	if err := install(&app.Services{Auth: a, SMTPSetup: setup}, &config.Config{}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if !a.called || !setup.called {
		t.Fatal("both installation steps should run")
	}
	if setup.remaining < reconcileTimeout-5*time.Second {
		t.Errorf("reconcile deadline %v, want about %v", setup.remaining, reconcileTimeout)
	}
}

func TestInstall_BootstrapFailureStops(t *testing.T) {
	a := &stubAuth{err: errors.New("db down")}
	setup := &stubSetup{}

	if err := install(&app.Services{Auth: a, SMTPSetup: setup}, &config.Config{}); err == nil {
		t.Fatal("expected bootstrap error")
	}
	if setup.called {
		t.Error("reconcile must not run after a failed bootstrap")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
