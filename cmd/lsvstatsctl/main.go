package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

func main() {
	pidFile := flag.String("P", "/var/run/lsvstats.pid", "pid file written by lsvstats")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-P pidfile] flush|reload\n", os.Args[0])
	}
	flag.Parse()

	var sig syscall.Signal
	switch flag.Arg(0) {
	case "flush":
		sig = syscall.SIGUSR1
	case "reload":
		sig = syscall.SIGHUP
	default:
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*pidFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		fmt.Fprintf(os.Stderr, "error: invalid pid in %s\n", *pidFile)
		os.Exit(1)
	}
	if err := syscall.Kill(pid, sig); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
