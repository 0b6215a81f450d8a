// SPDX-License-Identifier: MPL-2.0

// Command asmconflicts reports diamond version conflicts between the
// assemblies referenced by a .NET application.
package main

import cmd "github.com/invowk/asmconflicts/cmd/asmconflicts"

func main() {
	cmd.Execute()
}
