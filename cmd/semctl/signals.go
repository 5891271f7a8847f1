package main

import (
	"os"
	"os/signal"
	"syscall"
)

// setSignalsForChannel configures the channel to receive SIGINT and SIGTERM.
func setSignalsForChannel(c chan os.Signal) {
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
}

// waitForSignal blocks until SIGINT or SIGTERM arrives.
func waitForSignal() os.Signal {
	c := make(chan os.Signal, 1)
	setSignalsForChannel(c)
	defer signal.Stop(c)
	return <-c
}
