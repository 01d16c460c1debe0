// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
g2hostcached runs a standalone G2 host cache: it loads a persisted set of
candidate hub addresses, maintains them (aging, failure tracking, security
sanity passes), and keeps the snapshot on disk for the next run. It has no
network transport of its own; it exists to exercise and demonstrate the
hostcache package in isolation.

Usage:

	g2hostcached [OPTIONS]

Application Options:

	-C, --configfile=   Path to configuration file
	-b, --datadir=       Directory to store the host cache snapshot in
	    --logdir=        Directory to log output to
	-d, --debuglevel=    Logging level: trace, debug, info, warn, error, critical
	    --failurelimit=  Maximum consecutive connection failures before a host is evicted
	    --maxhosts=      Maximum number of hosts to retain
	    --hostexpire=    Seconds after which an unconnected host is pruned

Help Options:

	-h, --help           Show this help message
*/
package main

import (
	"fmt"
	"os"

	"github.com/quazaa-development-team/g2hostcache/hostcache"
	"github.com/quazaa-development-team/g2hostcache/security"
)

// runDaemon wires a security oracle and a host cache together, loads the
// persisted snapshot, runs until interrupted, and saves on the way out.
// It waits on the context returned by shutdownListener, which is canceled
// when an interrupt signal arrives.
func runDaemon(cfg *config) error {
	if err := initLogRotator(cfg.logFilePath()); err != nil {
		return err
	}
	defer closeLogRotator()
	if err := setLogLevels(cfg.Debug); err != nil {
		return err
	}

	log.Infof("Starting g2hostcached, data dir %s", cfg.DataDir)

	sec := security.New()

	hcCfg := hostcache.DefaultConfig()
	hcCfg.FailureLimit = cfg.FailureLimit
	hcCfg.HostCacheSize = cfg.HostCacheSize
	hcCfg.HostExpire = cfg.HostExpireSeconds

	cache := hostcache.New(sec, cfg.snapshotPath(), hcCfg)
	cache.Start()

	ctx := shutdownListener()
	cache.RunSanityChecks(ctx.Done())

	<-ctx.Done()

	log.Infof("Stopping g2hostcached...")
	return cache.Stop()
}

func main() {
	cfg, _, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "g2hostcached: %v\n", err)
		os.Exit(1)
	}

	if err := runDaemon(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "g2hostcached: %v\n", err)
		os.Exit(1)
	}
}
