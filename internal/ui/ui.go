// Package ui holds shared terminal output helpers.
package ui

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

// PrintTable renders a boxed table with a header row to the writer.
func PrintTable(writer io.Writer, header []string, rows [][]string) {
	data := append([][]string{header}, rows...)

	table := pterm.DefaultTable
	table.Boxed = true

	str, err := table.WithHasHeader().WithData(data).Srender()
	if err != nil {
		pterm.Error.Printfln("Failed to render table: %s", err.Error())
		return
	}

	fmt.Fprintln(writer, str)
}
