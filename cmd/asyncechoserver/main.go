// Command asyncechoserver is the non-blocking echo server: one
// listener per port, handing accepted connections round-robin to a
// fixed pool of CPU-pinned reactor goroutines. Each reactor starts a
// goroutine per connection it is handed, which serves that connection
// with a growable receive buffer so pipelined requests are answered in
// order; those per-connection goroutines are not CPU-pinned.
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
	flag.Var(&cpuSet, "cpu-set", "comma-separated CPU indices to pin reactors to")
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

	reactors := make([]chan net.Conn, len(cpuSet))
	for i := range reactors {
		reactors[i] = make(chan net.Conn, 64)
		go runReactor(cpuSet[i], reactors[i], log)
	}

	for _, port := range ports {
		addr := net.JoinHostPort(listenAddr, strconv.Itoa(port))
		ln, err := netconf.Listen(addr)
		if err != nil {
			log.Fatal("startup error: listen %s: %s", addr, err)
			return
		}
		go acceptLoop(ln, reactors, log)
	}

	select {} // the server runs until killed
}

// acceptLoop accepts connections off one listener and hands each to
// the next reactor in round-robin order.
func acceptLoop(ln net.Listener, reactors []chan net.Conn, log *logging.Logger) {
	next := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("accept: %s: %s", ln.Addr(), err)
			continue
		}
		reactors[next] <- conn
		next = (next + 1) % len(reactors)
	}
}

// runReactor pins its own OS thread to cpu and starts a goroutine
// running HandleAsync for every connection handed to it. The reactor
// goroutine only hands connections off: each connection is served on
// a goroutine of its own, which is not pinned to cpu.
func runReactor(cpu int, conns <-chan net.Conn, log *logging.Logger) {
	if err := cpuaffinity.Pin([]int{cpu}); err != nil {
		log.Warn("cpu affinity: %s", err)
	}
	for conn := range conns {
		go echoserver.HandleAsync(conn, log)
	}
}
