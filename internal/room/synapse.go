package room

import (
	"context"

	"github.com/masc-dev/masc/internal/backend"
)

// SynapseGet returns the directed edge from→to, or a zero-weight
// Synapse if no interaction has been recorded yet.
func (s *Store) SynapseGet(ctx context.Context, from, to string) (*Synapse, error) {
	raw, err := s.backend.Get(ctx, s.synapseKey(from, to))
	if err != nil {
		if backend.IsNotFound(err) {
			return &Synapse{From: from, To: to}, nil
		}
		return nil, s.translateBackendErr(err)
	}
	var syn Synapse
	if err := unmarshal(raw, &syn); err != nil {
		return nil, New(KindInternal, "corrupt synapse record: "+err.Error())
	}
	return &syn, nil
}

// SynapseUpdate persists the Hebbian weight/success/failure state for
// a from→to edge, computed by internal/hebbian, and publishes a
// synapse_updated notification.
func (s *Store) SynapseUpdate(ctx context.Context, syn *Synapse) error {
	syn.UpdatedAt = s.now()
	data, err := marshal(syn)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	if err := s.backend.Set(ctx, s.synapseKey(syn.From, syn.To), data); err != nil {
		return s.translateBackendErr(err)
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("synapse_updated", seq, syn)
	}
	return nil
}

// Synapses returns every collaboration edge recorded in the room,
// for the Hebbian graph export and dashboard tooling.
func (s *Store) Synapses(ctx context.Context) ([]*Synapse, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/synapses/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	out := make([]*Synapse, 0, len(keys))
	for _, k := range keys {
		raw, gerr := s.backend.Get(ctx, k)
		if gerr != nil {
			continue
		}
		var syn Synapse
		if unmarshal(raw, &syn) != nil {
			continue
		}
		out = append(out, &syn)
	}
	return out, nil
}
