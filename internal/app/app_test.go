package app

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/five82/ocupado/internal/config"
)

type fakeMonitor struct {
	activateErr error
	calls       []string
}

func (m *fakeMonitor) Activate(context.Context) error {
	m.calls = append(m.calls, "activate")
	return m.activateErr
}

func (m *fakeMonitor) Deactivate() {
	m.calls = append(m.calls, "deactivate")
}

type fakeStatus struct {
	online  []bool
	lastErr error
}

func (s *fakeStatus) SetNetwork(online bool) { s.online = append(s.online, online) }
func (s *fakeStatus) SetError(err error)     { s.lastErr = err }

func TestOnNetworkChange_RoutesTransitions(t *testing.T) {
	mon := &fakeMonitor{}
	status := &fakeStatus{}
	handle := onNetworkChange(context.Background(), status, mon, zerolog.Nop())

	handle(true)
	handle(false)
	handle(true)

	want := []string{"activate", "deactivate", "activate"}
	if len(mon.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", mon.calls, want)
	}
	for i := range want {
		if mon.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", mon.calls, want)
		}
	}
	if len(status.online) != 3 || !status.online[0] || status.online[1] || !status.online[2] {
		t.Fatalf("network labels = %v, want [true false true]", status.online)
	}
}

func TestOnNetworkChange_SurfacesActivateError(t *testing.T) {
	boom := errors.New("no devices")
	mon := &fakeMonitor{activateErr: boom}
	status := &fakeStatus{}
	handle := onNetworkChange(context.Background(), status, mon, zerolog.Nop())

	handle(true)
	if !errors.Is(status.lastErr, boom) {
		t.Fatalf("lastErr = %v, want wrapping %v", status.lastErr, boom)
	}

	mon.activateErr = nil
	handle(true)
	if status.lastErr != nil {
		t.Fatalf("lastErr = %v, want cleared after successful activate", status.lastErr)
	}
}

func TestOpenLogOutput_HeadlessUsesStderr(t *testing.T) {
	w, closeFn, err := openLogOutput(configWithLog(""), true)
	if err != nil {
		t.Fatalf("openLogOutput returned error: %v", err)
	}
	defer closeFn()
	if w == nil {
		t.Fatalf("writer is nil")
	}
}

func TestOpenLogOutput_CreatesLogFile(t *testing.T) {
	path := t.TempDir() + "/nested/ocupado.log"
	_, closeFn, err := openLogOutput(configWithLog(path), false)
	if err != nil {
		t.Fatalf("openLogOutput returned error: %v", err)
	}
	closeFn()
}

func configWithLog(path string) config.Config {
	return config.Config{LogFile: path}
}
