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

// Package internal implements the pouch subcommands.
package internal

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// A Command is an implementation of a pouch command.
type Command struct {
	// Run runs the command.
	// The args are the arguments after the command name.
	Run func(cmd *Command, args []string)

	// UsageLine is the one-line usage message.
	// The first word after "pouch " is the command name.
	UsageLine string

	// Short is the short description shown in the 'pouch help' output.
	Short string

	// Long is the long message shown in the 'pouch help <this-command>' output.
	Long string

	// Flag is a set of flags specific to this command.
	Flag flag.FlagSet
}

var (
	// PouchCommands is the table of runnable commands, set by main.
	PouchCommands []*Command

	// ConsoleLog is logging for console.
	ConsoleLog *logrus.Logger

	exitStatus = 0
	exitMu     sync.Mutex
)

func init() {
	ConsoleLog = logrus.New()
	ConsoleLog.Out = os.Stderr
	ConsoleLog.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
}

// Name returns the command's name: the first word in the usage line after
// "pouch ".
func (c *Command) Name() string {
	name := strings.TrimPrefix(c.UsageLine, "pouch ")
	if i := strings.Index(name, " "); i >= 0 {
		name = name[:i]
	}
	return name
}

// Usage prints the usage of c and exits.
func (c *Command) Usage() {
	fmt.Fprintf(os.Stderr, "usage: %s\n", c.UsageLine)
	fmt.Fprintf(os.Stderr, "%s\n", strings.TrimSpace(c.Long))
	fmt.Fprintf(os.Stderr, "\nParams:\n")
	c.Flag.SetOutput(os.Stderr)
	c.Flag.PrintDefaults()
	SetExitStatus(2)
	Exit()
}

// Runnable reports whether the command can be run; otherwise it is a
// documentation pseudo-command.
func (c *Command) Runnable() bool {
	return c.Run != nil
}

// SetExitStatus sets the exit status of the process, keeping the highest.
func SetExitStatus(n int) {
	exitMu.Lock()
	if exitStatus < n {
		exitStatus = n
	}
	exitMu.Unlock()
}

// Exit exits with the recorded status.
func Exit() {
	os.Exit(exitStatus)
}

// ExitIfErrors exits when an error status was recorded.
func ExitIfErrors() {
	if exitStatus != 0 {
		Exit()
	}
}

// MainUsage prints the command list and exits.
func MainUsage() {
	fmt.Fprintf(os.Stderr, "pouch is a private append-only notebook on a shared ledger.\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n\n    pouch <command> [params] [arguments]\n\nThe commands are:\n\n")
	for _, cmd := range PouchCommands {
		if cmd.Runnable() {
			fmt.Fprintf(os.Stderr, "    %-10s %s\n", cmd.Name(), cmd.Short)
		}
	}
	fmt.Fprintf(os.Stderr, "\nUse \"pouch help <command>\" for more information about a command.\n")
	SetExitStatus(2)
	Exit()
}
