// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gaissmai/pipapo"
)

var featureNames = map[string]pipapo.Features{
	"interval": pipapo.FeatureInterval,
	"map":      pipapo.FeatureMap,
	"object":   pipapo.FeatureObject,
	"timeout":  pipapo.FeatureTimeout,
	"concat":   pipapo.FeatureConcat,
}

func parseFeatures(names []string) (pipapo.Features, error) {
	var features pipapo.Features
	for _, name := range names {
		f, ok := featureNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, errors.Errorf("unknown feature %q", name)
		}
		features |= f
	}
	return features, nil
}

func newEstimateCmd(_ *app) *cobra.Command {
	var (
		fields   []int
		size     int
		features []string
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the memory footprint of a set",
		Example: `  pipapo estimate --fields 4,2,1 --size 10000
  pipapo estimate --fields 16,2 --size 1000 --features interval,concat,timeout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs, err := parseFeatures(features)
			if err != nil {
				return err
			}

			desc := pipapo.SetDesc{FieldLen: fields, Size: size}
			est, ok := pipapo.Estimate(desc, fs)
			if !ok {
				return errors.Errorf("no estimate for fields %v with features %v", fields, features)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "size:   %s (%d bytes)\n", units.BytesSize(float64(est.Size)), est.Size)
			fmt.Fprintf(w, "lookup: %v\n", est.Lookup)
			fmt.Fprintf(w, "space:  %v\n", est.Space)
			return nil
		},
	}

	fieldsFlag(cmd.Flags(), &fields, []int{4, 2})
	cmd.Flags().IntVar(&size, "size", 1000, "Expected number of elements")
	cmd.Flags().StringSliceVar(&features, "features", []string{"interval", "concat"}, "Set features")
	return cmd
}
