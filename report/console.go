/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"fmt"
	"strings"

	"github.com/ttacon/chalk"
)

// handles the formatted console rendering of a run report

func statusTag(passed bool) string {
	boldGreen := chalk.Green.NewStyle().WithTextStyle(chalk.Bold) // setting font color and style
	boldRed := chalk.Red.NewStyle().WithTextStyle(chalk.Bold)
	if passed {
		return boldGreen.Style("[PASS]")
	}
	return boldRed.Style("[FAIL]")
}

// PrintConsole renders the report as a human-readable table on stdout.
func PrintConsole(r Report, numNodes int) {
	boldWhite := chalk.White.NewStyle().WithTextStyle(chalk.Bold)
	boldCyan := chalk.Cyan.NewStyle().WithTextStyle(chalk.Bold)
	rule := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 60)

	fmt.Println()
	fmt.Println(rule)
	fmt.Println(boldWhite.Style("           CONSISTENCY TEST REPORT - ZENITH DATAPLANE"))
	fmt.Println(rule)
	fmt.Printf("  Timestamp: %s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Duration:  %s\n", r.Summary.Duration)
	fmt.Printf("  Nodes:     %d\n", numNodes)
	if r.CPULoad > 0 {
		fmt.Printf("  Controller CPU load: %.1f%%\n", r.CPULoad*100)
	}
	fmt.Println(rule)
	fmt.Println("\n  PHASE RESULTS:")
	fmt.Println(thin)

	for _, phase := range r.Phases {
		fmt.Printf("  %s %s: %s\n", statusTag(phase.Passed), boldCyan.Style(phase.Phase), phase.Details)
	}

	fmt.Println(thin)
	fmt.Printf("\n  SUMMARY: %d/%d phases passed (%s)\n",
		r.Summary.Passed, r.Summary.Total, r.Summary.SuccessRate)

	if r.AllPassed() {
		fmt.Println("\n  " + statusTag(true) + " All phases passed. The cluster demonstrates distributed consistency.")
	} else {
		fmt.Printf("\n  "+statusTag(false)+" %d phase(s) failed. Review recommended.\n", r.Summary.Failed)
	}

	fmt.Println(rule)
	fmt.Println()
}
