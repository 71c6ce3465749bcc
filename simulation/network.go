package simulation

import (
	"fmt"

	"github.com/sarchlab/diligent/config"
	"github.com/sarchlab/diligent/models"
	"github.com/sarchlab/diligent/sim"
)

// WithRunConfig applies the kernel and recording settings of a run file.
func (b Builder) WithRunConfig(c config.RunConfig) Builder {
	b = b.WithThreads(c.Threads).
		WithMinDelay(c.MinDelay).
		WithSliceWidth(c.SliceWidth).
		WithResolution(c.Resolution)

	if c.Database != "" {
		b = b.WithDataRecording(c.Database)
	}

	return b
}

// Network holds the nodes and edges created from a network description.
type Network struct {
	Nodes   map[string]sim.NodeID
	Sources map[string]*models.SpikeSource
	Targets map[string]*models.PulseTraceNode
	Probes  []*models.ProbeEdge
}

// BuildNetwork adds the nodes and edges of n to the kernel. The update
// manager must be set up before probe edges can be connected.
func (s *Session) BuildNetwork(n config.NetworkConfig) (*Network, error) {
	net := &Network{
		Nodes:   make(map[string]sim.NodeID),
		Sources: make(map[string]*models.SpikeSource),
		Targets: make(map[string]*models.PulseTraceNode),
	}

	for _, sc := range n.Sources {
		src := models.NewSpikeSource(sc.SpikeTimes...)
		net.Nodes[sc.Name] = s.kernel.AddNode(src)
		net.Sources[sc.Name] = src
	}

	for _, tc := range n.Targets {
		dst := models.NewPulseTraceNode(s.manager, tc.SpikeTimes...)
		dst.Offset = tc.Offset
		if tc.Weight != nil {
			dst.Weight = *tc.Weight
		}

		net.Nodes[tc.Name] = s.kernel.AddNode(dst)
		net.Targets[tc.Name] = dst
	}

	for _, ec := range n.Edges {
		if err := s.connect(net, ec); err != nil {
			return net, err
		}
	}

	s.logger.Info("network built",
		"nodes", len(net.Nodes), "probes", len(net.Probes))

	return net, nil
}

func (s *Session) connect(net *Network, ec config.EdgeConfig) error {
	from, found := net.Nodes[ec.From]
	if !found {
		return fmt.Errorf("simulation: unknown node %q", ec.From)
	}

	to, found := net.Nodes[ec.To]
	if !found {
		return fmt.Errorf("simulation: unknown node %q", ec.To)
	}

	weight := 1.0
	if ec.Weight != nil {
		weight = *ec.Weight
	}

	if ec.Delay == 0 {
		ec.Delay = s.kernel.MinDelay()
	}

	for range max(ec.Count, 1) {
		var e sim.Edge

		switch ec.Model {
		case StaticModel:
			e = models.NewStaticEdge(to, weight, ec.Delay)
		default:
			p := models.MakeProbeEdgeBuilder().
				WithWeight(weight).
				WithDelay(ec.Delay).
				WithRetireAt(ec.RetireAt).
				WithRecordInterval(ec.RecordInterval).
				Build(to)
			net.Probes = append(net.Probes, p)
			e = p
		}

		model := ec.Model
		if model == "" {
			model = ProbeModel
		}

		if err := s.kernel.Connect(from, model, e); err != nil {
			return fmt.Errorf("simulation: %s -> %s: %w", ec.From, ec.To, err)
		}
	}

	return nil
}
