/*
 * Copyright 2026 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	pversion "github.com/prometheus/common/version"

	"github.com/CovenantSQL/SecretLedger/conf"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
)

const name = "pouchd"

var (
	version = "unknown"
	commit  = "unknown"
	branch  = "unknown"
)

var (
	configFile     string
	password       string
	logLevel       string
	genKey         bool
	showVersion    bool
	metricLog      bool
	metricGraphite string
	profile        utils.ProfileOptions
)

func init() {
	flag.StringVar(&configFile, "config", "~/.pouch/pouchd.yaml", "Config file path")
	flag.StringVar(&password, "password", "", "Vault key password, defaults to $POUCHD_PASSWORD")
	flag.StringVar(&logLevel, "log-level", "", "Log level, overrides the config file")
	flag.BoolVar(&genKey, "gen-key", false, "Generate the vault key file if it does not exist")
	flag.BoolVar(&showVersion, "version", false, "Show version information and exit")
	flag.BoolVar(&metricLog, "metric-log", false, "Print metrics in log")
	flag.StringVar(&metricGraphite, "metric-graphite-server", "", "Metric graphite server to push metrics")
	flag.StringVar(&profile.CPU, "cpu-profile", "", "Path to file for CPU profiling information")
	flag.StringVar(&profile.Mem, "mem-profile", "", "Path to file for memory profiling information")
	flag.StringVar(&profile.Trace, "trace-file", "", "Path to file for runtime trace output")
}

func main() {
	rand.Seed(time.Now().UnixNano())
	flag.Parse()
	// exported by the build_info collector
	pversion.Version, pversion.Revision, pversion.Branch = version, commit, branch
	if showVersion {
		fmt.Printf("%v %v %v %v %v\n", name, version, branch, commit, runtime.Version())
		os.Exit(0)
	}

	cfg, err := conf.LoadConfig(utils.HomeDirExpand(configFile))
	if err != nil {
		log.WithError(err).Fatal("load config failed")
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	log.SetStringLevel(logLevel, log.InfoLevel)
	flag.Visit(func(f *flag.Flag) {
		if f.Name != "password" {
			log.Infof("args %s : %v", f.Name, f.Value)
		}
	})
	if password == "" {
		password = os.Getenv("POUCHD_PASSWORD")
	}
	if metricGraphite != "" {
		if cfg.Metric == nil {
			cfg.Metric = &conf.MetricConfig{LogInterval: conf.DefaultMetricLogInterval}
		}
		cfg.Metric.GraphiteServer = metricGraphite
	}

	prof, err := utils.StartProfile(profile)
	if err != nil {
		log.WithError(err).Fatal("start profile failed")
	}
	defer prof.Stop()

	d, err := newDaemon(cfg, []byte(password), genKey)
	if err != nil {
		log.WithError(err).Fatal("init pouchd failed")
	}
	if err = d.start(); err != nil {
		log.WithError(err).Fatal("start pouchd failed")
	}
	log.WithFields(log.Fields{
		"ledger":  cfg.Ledger.ID.Hex(),
		"listen":  cfg.Ledger.ListenAddr,
		"version": version,
	}).Info("pouchd started")

	<-utils.WaitForExit()

	if err = d.stop(); err != nil {
		log.WithError(err).Error("stop pouchd failed")
	}
	log.Info("pouchd stopped")
}
