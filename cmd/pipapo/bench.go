// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gaissmai/pipapo"
	"github.com/gaissmai/pipapo/internal/tests/random"
)

type benchOpts struct {
	fields  []int
	entries int
	pool    int
	lookups int
	readers int
	churn   bool
	seed    uint64
}

type benchResult struct {
	build    time.Duration
	lookups  int64
	matches  int64
	elapsed  time.Duration
	commits  int64
	stats    pipapo.Stats
	estimate uint64
}

// runBench fills a set with random entries and runs lookups of random
// keys inside them, with a writer churning entries if asked to.
func runBench(ctx context.Context, o benchOpts, cfg pipapo.Config, log *zap.Logger) (benchResult, error) {
	var res benchResult

	prng := rand.New(rand.NewPCG(o.seed, 42))
	ranges := random.Entries(prng, o.fields, o.entries, o.pool)
	if len(ranges) == 0 {
		return res, errors.New("no entries generated")
	}

	s, err := pipapo.New(pipapo.SetDesc{FieldLen: o.fields}, pipapo.WithConfig(cfg), pipapo.WithLogger(log), pipapo.WithName("bench"))
	if err != nil {
		return res, err
	}

	elems := make([]*pipapo.Elem, len(ranges))
	start := time.Now()
	for i, r := range ranges {
		elems[i] = pipapo.NewElem(r.Start, r.End, i)
		if _, err := s.Insert(elems[i], 0); err != nil {
			return res, errors.WithMessagef(err, "entry %d", i)
		}
	}
	s.Commit()
	res.build = time.Since(start)

	if est, ok := pipapo.Estimate(pipapo.SetDesc{FieldLen: o.fields, Size: len(ranges)}, pipapo.FeatureInterval|pipapo.FeatureConcat); ok {
		res.estimate = est.Size
	}

	// probes, half of them inside an entry
	probes := make([][]byte, 1024)
	for i := range probes {
		if i%2 == 0 {
			probes[i] = random.Inside(prng, o.fields, ranges[prng.IntN(len(ranges))])
			continue
		}
		probes[i] = random.Key(prng, o.fields)
	}

	var lookups, matches, commits atomic.Int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if o.churn {
		g.Go(func() error {
			for i := 0; ctx.Err() == nil; i++ {
				e := elems[i%len(elems)]
				if err := s.Remove(e); err != nil {
					return errors.WithMessagef(err, "churn remove %d", i)
				}
				s.Commit()
				if _, err := s.Insert(e, 0); err != nil {
					return errors.WithMessagef(err, "churn insert %d", i)
				}
				s.Commit()
				commits.Add(2)
			}
			return nil
		})
	}

	var readers errgroup.Group
	per := o.lookups / o.readers
	start = time.Now()
	for r := range o.readers {
		readers.Go(func() error {
			var hit int64
			for i := range per {
				if _, ok := s.Lookup(probes[(i+r)%len(probes)], 0, time.Time{}); ok {
					hit++
				}
			}
			lookups.Add(int64(per))
			matches.Add(hit)
			return nil
		})
	}
	_ = readers.Wait()
	res.elapsed = time.Since(start)

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return res, err
	}

	res.lookups = lookups.Load()
	res.matches = matches.Load()
	res.commits = commits.Load()
	res.stats = s.Stats()
	return res, nil
}

func newBenchCmd(a *app) *cobra.Command {
	o := benchOpts{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark lookups on a set of random entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.readers < 1 || o.lookups < o.readers {
				return errors.Errorf("%d lookups for %d readers", o.lookups, o.readers)
			}

			res, err := runBench(cmd.Context(), o, a.table, a.log)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			elements := res.stats.Elements

			var tableBytes int
			for _, f := range res.stats.Fields {
				tableBytes += f.TableBytes + f.MappingBytes
			}

			table := newTable(w)
			table.AppendBulk([][]string{
				{"elements", strconv.Itoa(elements)},
				{"build", res.build.String()},
				{"tables", units.BytesSize(float64(tableBytes))},
				{"estimate", units.BytesSize(float64(res.estimate))},
				{"lookups", strconv.FormatInt(res.lookups, 10)},
				{"matches", strconv.FormatInt(res.matches, 10)},
				{"ns/lookup", fmt.Sprintf("%.1f", float64(res.elapsed.Nanoseconds())*float64(o.readers)/float64(max(res.lookups, 1)))},
				{"commits", strconv.FormatInt(res.commits, 10)},
			})
			table.Render()
			return nil
		},
	}

	flags := cmd.Flags()
	fieldsFlag(flags, &o.fields, []int{4, 2, 1})
	flags.IntVarP(&o.entries, "entries", "n", 1000, "Number of random entries")
	flags.IntVar(&o.pool, "pool", 64, "Distinct ranges per field")
	flags.IntVar(&o.lookups, "lookups", 1_000_000, "Total number of lookups")
	flags.IntVar(&o.readers, "readers", 4, "Concurrent readers")
	flags.BoolVar(&o.churn, "churn", false, "Remove and reinsert entries while looking up")
	flags.Uint64Var(&o.seed, "seed", 42, "Random seed")
	return cmd
}
