// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	units "github.com/docker/go-units"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gaissmai/pipapo"
	"github.com/gaissmai/pipapo/internal/ruleset"
)

// newTable returns a borderless, left aligned table writer.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

// writeStats writes the per field statistics of s.
func writeStats(w io.Writer, f *ruleset.File, st pipapo.Stats) {
	fmt.Fprintf(w, "set %q: %d elements, scratch %d words\n\n", st.Name, st.Elements, st.ScratchWords)

	table := newTable(w, "FIELD", "TYPE", "BYTES", "GROUPS", "BITS", "RULES", "CAPACITY", "LOOKUP TABLE", "MAPPING")
	for i, fs := range st.Fields {
		table.Append([]string{
			f.Fields[i].Name,
			string(f.Fields[i].Type),
			strconv.Itoa(fs.Bytes),
			strconv.Itoa(fs.Groups),
			strconv.Itoa(fs.GroupBits),
			strconv.Itoa(fs.Rules),
			strconv.Itoa(fs.Capacity),
			units.BytesSize(float64(fs.TableBytes)),
			units.BytesSize(float64(fs.MappingBytes)),
		})
	}
	table.Render()
}

func newDumpCmd(a *app) *cobra.Command {
	var tables, asJSON bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Show the statistics, tables or elements of a rule file set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, s, err := a.buildSet()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			case tables:
				s.Dump(w)
			default:
				writeStats(w, f, s.Stats())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&tables, "tables", false, "Dump the lookup and mapping tables")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Dump the elements as JSON")
	return cmd
}
