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

package internal

import (
	"fmt"
	"os"
	"runtime"
)

const name = "pouch"

var (
	// Version of command, set by main func of version
	Version = "unknown"
)

// CmdVersion is pouch version command entity.
var CmdVersion = &Command{
	UsageLine: "pouch version",
	Short:     "show build version information",
	Long: `
Version prints the build version of pouch.
`,
}

// CmdHelp is pouch help command entity.
var CmdHelp = &Command{
	UsageLine: "pouch help [command]",
	Short:     "show help of a command",
	Long: `
Help prints the usage of a command.
`,
}

func init() {
	CmdVersion.Run = runVersion
	CmdHelp.Run = runHelp
}

// PrintVersion prints program version.
func PrintVersion() string {
	return fmt.Sprintf("%v %v %v %v %v\n",
		name, Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func runVersion(cmd *Command, args []string) {
	fmt.Print(PrintVersion())
}

func runHelp(cmd *Command, args []string) {
	if len(args) == 0 {
		MainUsage()
	}
	for _, c := range PouchCommands {
		if c.Name() == args[0] {
			c.Usage()
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown help topic %q. Run 'pouch help'.\n", args[0])
	SetExitStatus(2)
}
