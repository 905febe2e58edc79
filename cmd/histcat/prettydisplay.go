/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ttacon/chalk"

	"github.com/zenith-project/nemesis/history"
)

// handles the formatted display of recorded operations

// Creates and returns a prefix tag for operation display using operation metadata
func getMetaTag(op history.Operation) string {
	boldGreen := chalk.Green.NewStyle().WithTextStyle(chalk.Bold) // setting font color and style
	boldRed := chalk.Red.NewStyle().WithTextStyle(chalk.Bold)
	boldCyan := chalk.Cyan.NewStyle().WithTextStyle(chalk.Bold)

	kindStyle := boldGreen
	if !op.Success {
		kindStyle = boldRed
	}

	return fmt.Sprintf("%s %s",
		kindStyle.Style(fmt.Sprintf("[ Op_%s ]", strings.ToUpper(string(op.Kind)))),
		boldCyan.Style(fmt.Sprintf("[ Node %s ] [ Invoked %s ] [ Id #%s ]",
			op.Node,
			op.InvokedAt.Format("15:04:05.000"),
			strconv.FormatUint(op.ID, 10))),
	)
}

// displays one operation
func displayOperation(op history.Operation) {
	whiteText := chalk.White.NewStyle().WithTextStyle(chalk.Bold)

	body := fmt.Sprintf("%s=%s", op.Key, op.Value)
	if op.Kind == history.Read {
		body = fmt.Sprintf("%s -> %q", op.Key, op.ObservedValue)
	}
	if op.Error != "" {
		body = fmt.Sprintf("%s (error: %s)", body, op.Error)
	}

	fmt.Printf("%s %s\n", getMetaTag(op), whiteText.Style(body))
}

// displays the keys of all archived runs
func displayRunList(keys []string) {
	boldWhite := chalk.White.NewStyle().WithTextStyle(chalk.Bold)

	fmt.Println(boldWhite.Style("Archived runs:"))
	for _, key := range keys {
		fmt.Printf("  %s\n", key)
	}
	if len(keys) == 0 {
		fmt.Println("  (none)")
	}
}
