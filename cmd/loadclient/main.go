// Command loadclient is the rate-controlled pipelined client: it
// drives a self-adjusting, multi-session request stream against a
// target and reports time-bucketed throughput and latency to stdout.
//
// The client runs until killed; any I/O error on an established
// session is fatal.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/mkevac/tcpblast/internal/cli"
	"github.com/mkevac/tcpblast/internal/logging"
	"github.com/mkevac/tcpblast/internal/netconf"
	"github.com/mkevac/tcpblast/internal/partition"
	"github.com/mkevac/tcpblast/internal/stats"
	"github.com/mkevac/tcpblast/internal/worker"
)

func main() {
	log := logging.Default()

	var (
		remoteAddr       string
		remotePorts      cli.IntList
		connections      int
		requestsPerSec   int
		messageSizeRange int
		cpuSet           cli.IntList
		bulkConnect      int
	)

	flag.StringVar(&remoteAddr, "remote-addr", "127.0.0.1", "target IPv4 address")
	flag.Var(&remotePorts, "remote-ports", "comma-separated target ports")
	flag.IntVar(&connections, "connections", 100, "total sessions to open")
	flag.IntVar(&requestsPerSec, "requests-per-second", 1000, "aggregate target rate")
	flag.IntVar(&messageSizeRange, "message-size-range", 100, "payload range R, in bytes")
	flag.Var(&cpuSet, "cpu-set", "comma-separated CPU indices to pin workers to")
	flag.IntVar(&bulkConnect, "bulk-connect", 0, "per-worker bulk-connect budget (0 = system listen backlog max)")
	flag.Parse()

	if len(remotePorts) == 0 {
		remotePorts = cli.IntList{9999}
	}
	if len(cpuSet) == 0 {
		cpuSet = make(cli.IntList, runtime.NumCPU())
		for i := range cpuSet {
			cpuSet[i] = i
		}
	}
	if bulkConnect == 0 {
		bulkConnect = netconf.ListenBacklogMax()
	}

	cli.EchoValue(os.Stdout, "remote-addr", remoteAddr)
	cli.Echo(os.Stdout, "remote-ports", &remotePorts)
	cli.EchoValue(os.Stdout, "connections", connections)
	cli.EchoValue(os.Stdout, "requests-per-second", requestsPerSec)
	cli.EchoValue(os.Stdout, "message-size-range", messageSizeRange)
	cli.Echo(os.Stdout, "cpu-set", &cpuSet)
	cli.EchoValue(os.Stdout, "bulk-connect", bulkConnect)

	if connections < 1 || requestsPerSec < 1 || messageSizeRange < 1 || len(cpuSet) < 1 {
		log.Fatal("configuration error: connections, requests-per-second, message-size-range and cpu-set must all be positive")
		return
	}

	addrs := make([]string, connections)
	for i := range addrs {
		port := remotePorts[i%len(remotePorts)]
		addrs[i] = fmt.Sprintf("%s:%d", remoteAddr, port)
	}

	numWorkers := len(cpuSet)
	connShares := partition.Split(connections, numWorkers)
	rateShares := partition.Split(requestsPerSec, numWorkers)
	bulkShares := partition.Split(bulkConnect, numWorkers)

	activeWorkers := 0
	for _, share := range connShares {
		if share > 0 {
			activeWorkers++
		}
	}

	// base is the time origin shared by every worker's pacer and by
	// the controller's timeline, so every worker's first update lands
	// on a common bucket edge.
	base := time.Now()
	controller := stats.New(activeWorkers, base)

	offset := 0
	for i := 0; i < numWorkers; i++ {
		share := connShares[i]
		workerAddrs := addrs[offset : offset+share]
		offset += share

		if share == 0 {
			log.Warn("cpu %d assigned no connections, skipping", cpuSet[i])
			continue
		}

		rate := rateShares[i]
		if rate < 1 {
			rate = 1
		}

		cfg := worker.Config{
			CPU:            cpuSet[i],
			Addrs:          workerAddrs,
			RatePerSecond:  float64(rate),
			BulkConnectMax: bulkShares[i],
			MessageRange:   messageSizeRange,
			Reporter:       controller,
			Logger:         log,
			RandomSeed:     time.Now().UnixNano() ^ int64(i)*0x2545F4914F6CDD1D,
			Base:           base,
		}

		w, err := worker.New(cfg)
		if err != nil {
			log.Fatal("startup error: %s", err)
			return
		}
		go w.Run()
	}

	select {} // the client runs until killed
}
