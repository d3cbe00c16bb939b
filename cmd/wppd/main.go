package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/matheus3301/wppdesk/internal/daemon"
	"github.com/matheus3301/wppdesk/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (default $WPPDESK_SESSION, then config)")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	name, err := session.Name(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wppd: %v\n", err)
		os.Exit(2)
	}

	fx.New(daemon.Module(daemon.Params{SessionName: name, Debug: *debug})).Run()
}
