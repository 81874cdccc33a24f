// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gaissmai/pipapo"
	"github.com/gaissmai/pipapo/internal/packetkey"
	"github.com/gaissmai/pipapo/internal/ruleset"
)

// extractor returns the packet key extractor for the fields of f.
func extractor(f *ruleset.File) (*packetkey.Extractor, error) {
	fields := make([]packetkey.Field, len(f.Fields))
	for i, fd := range f.Fields {
		if fd.Selector == "" {
			return nil, errors.Errorf("field %q: no selector", fd.Name)
		}
		fields[i] = packetkey.Field{Selector: packetkey.Selector(fd.Selector), Len: fd.Type.Len()}
	}
	return packetkey.New(fields)
}

// classifier counts the packets of a capture per matching element.
type classifier struct {
	set *pipapo.Set
	x   *packetkey.Extractor
	log *zap.Logger

	packets *prometheus.CounterVec
}

func newClassifier(set *pipapo.Set, x *packetkey.Extractor, log *zap.Logger, reg prometheus.Registerer) *classifier {
	return &classifier{
		set: set,
		x:   x,
		log: log,
		packets: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipapo",
			Name:      "classified_packets_total",
			Help:      "Packets of the capture, by matching element value.",
		}, []string{"value"}),
	}
}

// run reads all packets from r.
func (c *classifier) run(r io.Reader) error {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "reading pcap header")
	}
	if lt := pr.LinkType(); lt != layers.LinkTypeEthernet {
		return errors.Errorf("link type %v, want ethernet", lt)
	}

	for n := 0; ; n++ {
		data, _, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "packet %d", n)
		}

		c.packets.WithLabelValues(c.classify(data, n)).Inc()
	}
}

// classify returns the label for the frame in data.
func (c *classifier) classify(data []byte, n int) string {
	key, err := c.x.Key(data)
	if err != nil {
		c.log.Debug("packet skipped", zap.Int("packet", n), zap.Error(err))
		return "(unclassified)"
	}

	e, ok := c.set.Lookup(key, 0, time.Now())
	if !ok {
		return "(no match)"
	}
	if v, ok := e.(*pipapo.Elem); ok && v.Value != nil {
		return fmt.Sprint(v.Value)
	}
	return fmt.Sprintf("%x", e.Key())
}

// writeMetrics writes the counters and gauges gathered from g.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	table := newTable(w, "METRIC", "LABELS", "VALUE")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			table.Append([]string{mf.GetName(), strings.Join(labels, ","), strconv.FormatFloat(v, 'f', -1, 64)})
		}
	}
	table.Render()
	return nil
}

// writeCounts writes the packet count per label, most frequent first.
func writeCounts(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	type row struct {
		label string
		count float64
	}
	var rows []row
	for _, mf := range families {
		if mf.GetName() != "pipapo_classified_packets_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			rows = append(rows, row{m.GetLabel()[0].GetValue(), m.GetCounter().GetValue()})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].label < rows[j].label
	})

	table := newTable(w, "ELEMENT", "PACKETS")
	for _, r := range rows {
		table.Append([]string{r.label, strconv.FormatFloat(r.count, 'f', -1, 64)})
	}
	table.Render()
	return nil
}

func newClassifyCmd(a *app) *cobra.Command {
	var (
		pcapFile    string
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:     "classify",
		Short:   "Classify the packets of a capture file",
		Example: `  pipapo classify --rules filter.yaml --pcap trace.pcap`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := prometheus.NewRegistry()

			f, s, err := a.buildSet(pipapo.WithMetrics(pipapo.NewMetrics(reg)))
			if err != nil {
				return err
			}

			x, err := extractor(f)
			if err != nil {
				return err
			}

			fh, err := os.Open(pcapFile)
			if err != nil {
				return err
			}
			defer fh.Close()

			c := newClassifier(s, x, a.log, reg)
			if err := c.run(fh); err != nil {
				return errors.WithMessage(err, pcapFile)
			}

			w := cmd.OutOrStdout()
			if showMetrics {
				return writeMetrics(w, reg)
			}
			return writeCounts(w, reg)
		},
	}

	cmd.Flags().StringVar(&pcapFile, "pcap", "", "Capture file, ethernet link type")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Show all set metrics")
	_ = cmd.MarkFlagRequired("pcap")
	return cmd
}
