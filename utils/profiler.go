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

package utils

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/utils/trace"
)

// ProfileOptions names the output files of a Profile. Empty names are skipped.
type ProfileOptions struct {
	CPU   string
	Mem   string
	Trace string
}

// Profile collects the profiles of a running process until Stop.
type Profile struct {
	cpu, mem, trace *os.File
}

// StartProfile starts every profile named in opts. On error nothing is left
// running.
func StartProfile(opts ProfileOptions) (p *Profile, err error) {
	p = &Profile{}
	defer func() {
		if err != nil {
			p.Stop()
			p = nil
		}
	}()

	if opts.CPU != "" {
		if p.cpu, err = createProfile(opts.CPU, "cpu"); err != nil {
			return
		}
		if err = pprof.StartCPUProfile(p.cpu); err != nil {
			p.cpu.Close()
			p.cpu = nil
			err = errors.Wrap(err, "start cpu profile failed")
			return
		}
	}
	if opts.Mem != "" {
		if p.mem, err = createProfile(opts.Mem, "memory"); err != nil {
			return
		}
		runtime.MemProfileRate = 4096
	}
	if opts.Trace != "" {
		if p.trace, err = createProfile(opts.Trace, "trace"); err != nil {
			return
		}
		if err = trace.Start(p.trace); err != nil {
			p.trace.Close()
			p.trace = nil
			err = errors.Wrap(err, "start trace failed")
			return
		}
	}
	return
}

func createProfile(path, kind string) (f *os.File, err error) {
	le := log.WithFields(log.Fields{"kind": kind, "file": path})
	if f, err = os.Create(path); err != nil {
		le.WithError(err).Error("create profile file failed")
		return nil, errors.Wrapf(err, "create %s profile failed", kind)
	}
	le.Info("profiling to file")
	return
}

// Stop flushes and closes the running profiles. It is safe to call on nil.
func (p *Profile) Stop() {
	if p == nil {
		return
	}
	if p.cpu != nil {
		pprof.StopCPUProfile()
		p.cpu.Close()
		p.cpu = nil
		log.Info("cpu profiling stopped")
	}
	if p.mem != nil {
		if err := pprof.WriteHeapProfile(p.mem); err != nil {
			log.WithError(err).Warning("write memory profile failed")
		}
		p.mem.Close()
		p.mem = nil
		log.Info("memory profiling stopped")
	}
	if p.trace != nil {
		trace.Stop()
		p.trace.Close()
		p.trace = nil
		log.Info("tracing stopped")
	}
}
