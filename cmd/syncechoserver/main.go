// Command syncechoserver is the blocking echo server: every listener
// feeds one shared accept queue, drained by a fixed pool of
// CPU-pinned goroutines that each block for the lifetime of a
// connection using deadline-driven reads.
package main

import (
	"flag"
	"net"
	"os"
	"runtime"
	"strconv"

	"github.com/mkevac/tcpblast/internal/cli"
	"github.com/mkevac/tcpblast/internal/cpuaffinity"
	"github.com/mkevac/tcpblast/internal/echoserver"
	"github.com/mkevac/tcpblast/internal/logging"
	"github.com/mkevac/tcpblast/internal/netconf"
)

func main() {
	log := logging.Default()

	var (
		listenAddr string
		ports      cli.IntList
		cpuSet     cli.IntList
	)

	flag.StringVar(&listenAddr, "listen-addr", "0.0.0.0", "address to listen on")
	flag.Var(&ports, "local-ports", "comma-separated listen ports")
	flag.Var(&cpuSet, "cpu-set", "comma-separated CPU indices to pin workers to")
	flag.Parse()

	if len(ports) == 0 {
		ports = cli.IntList{9999}
	}
	if len(cpuSet) == 0 {
		cpuSet = make(cli.IntList, runtime.NumCPU())
		for i := range cpuSet {
			cpuSet[i] = i
		}
	}

	cli.EchoValue(os.Stdout, "listen-addr", listenAddr)
	cli.Echo(os.Stdout, "local-ports", &ports)
	cli.Echo(os.Stdout, "cpu-set", &cpuSet)

	accepted := make(chan net.Conn, 64)

	for _, port := range ports {
		addr := net.JoinHostPort(listenAddr, strconv.Itoa(port))
		ln, err := netconf.Listen(addr)
		if err != nil {
			log.Fatal("startup error: listen %s: %s", addr, err)
			return
		}
		go acceptLoop(ln, accepted, log)
	}

	for _, cpu := range cpuSet {
		go runWorker(cpu, accepted, log)
	}

	select {} // the server runs until killed
}

// acceptLoop accepts connections off one listener into the shared
// queue every worker in the pool drains from.
func acceptLoop(ln net.Listener, accepted chan<- net.Conn, log *logging.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("accept: %s: %s", ln.Addr(), err)
			continue
		}
		accepted <- conn
	}
}

// runWorker pins to cpu and, one connection at a time, blocks serving
// it to completion before pulling the next from the shared queue —
// the thread-per-connection-from-a-shared-pool structure the
// synchronous reference server uses.
func runWorker(cpu int, accepted <-chan net.Conn, log *logging.Logger) {
	if err := cpuaffinity.Pin([]int{cpu}); err != nil {
		log.Warn("cpu affinity: %s", err)
	}
	for conn := range accepted {
		echoserver.HandleSync(conn, log)
	}
}
