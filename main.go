// SPDX-License-Identifier: MPL-2.0

// Command simwatch watches a simulated app project and reports, or pushes to
// browsers, every asset that changed.
package main

import cmd "simwatch/cmd/simwatch"

func main() {
	cmd.Execute()
}
