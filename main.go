// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/gramflow/gramflow/cmd/gramflow"

func main() {
	cmd.Execute()
}
