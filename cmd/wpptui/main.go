package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/lock"
	"github.com/matheus3301/wppdesk/internal/session"
	"github.com/matheus3301/wppdesk/internal/tui"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (default $WPPDESK_SESSION, then config)")
	noSpawn := flag.Bool("no-spawn", false, "fail instead of starting wppd when no daemon is running")
	flag.Parse()

	if err := run(*sessionFlag, !*noSpawn); err != nil {
		fmt.Fprintf(os.Stderr, "wpptui: %v\n", err)
		os.Exit(1)
	}
}

func run(sessionFlag string, spawn bool) error {
	name, err := session.Name(sessionFlag)
	if err != nil {
		return err
	}
	layout := session.For(name)

	if !daemonUp(layout) {
		if !spawn {
			return fmt.Errorf("no daemon running for session %q", name)
		}
		fmt.Fprintf(os.Stderr, "starting wppd for session %q...\n", name)
		if err := spawnDaemon(name); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}
		if err := awaitDaemon(layout, 15*time.Second); err != nil {
			return err
		}
	}

	c, err := api.Dial(layout.SocketPath())
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer func() { _ = c.Close() }()

	return tui.NewApp(c, name).Run()
}

// daemonUp reports whether a daemon holds the session lock and answers on its socket.
func daemonUp(layout session.Layout) bool {
	if _, held, err := lock.Probe(layout.LockPath()); err == nil && !held {
		return false
	}
	c, err := api.Dial(layout.SocketPath())
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Status(ctx)
	return err == nil
}

// spawnDaemon starts wppd detached, preferring the binary next to this one.
func spawnDaemon(name string) error {
	bin := "wppd"
	if exe, err := os.Executable(); err == nil {
		if sibling := filepath.Join(filepath.Dir(exe), "wppd"); fileExists(sibling) {
			bin = sibling
		}
	}
	// wppd logs into the session directory; inherited stdio would draw over the TUI.
	cmd := exec.Command(bin, "--session", name)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func awaitDaemon(layout session.Layout, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if daemonUp(layout) {
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return errors.New("daemon did not come up; see " + layout.LogPath())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
