// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "lookup value...",
		Short:   "Look up a key, one value per field",
		Example: `  pipapo lookup --rules filter.yaml 10.1.2.3 https tcp`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, s, err := a.buildSet()
			if err != nil {
				return err
			}

			key, err := f.ParseKey(args)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			e, ok := s.Lookup(key, 0, time.Now())
			if !ok {
				fmt.Fprintf(w, "%x: no match\n", key)
				return nil
			}
			fmt.Fprintf(w, "%x: %v\n", key, e)
			return nil
		},
	}
}
