package tools

import (
	"context"
	"sort"

	"github.com/masc-dev/masc/internal/room"
)

// ToolDescriptor is the tools/list shape for one tool, per spec.md
// §4.3 ("the dispatcher returns { tools: [{name, description,
// inputSchema}] } on tools/list").
type ToolDescriptor struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

func registerDiscovery(r *Registry) {
	r.Register(Tool{
		Name:        "masc_list_tools",
		Category:    CategoryDiscovery,
		Description: "List every tool visible under the room's current mode.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			info, err := s.RoomInfo(ctx)
			if err != nil {
				return nil, err
			}
			enabled := enabledSet(info.Mode)
			tools := r.List(enabled)
			sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
			out := make([]ToolDescriptor, 0, len(tools))
			for _, t := range tools {
				var schemaVal any
				_ = jsonUnmarshalRaw(t.Schema, &schemaVal)
				out = append(out, ToolDescriptor{
					Name:        t.Name,
					Category:    string(t.Category),
					Description: t.Description,
					InputSchema: schemaVal,
				})
			}
			return struct {
				Tools []ToolDescriptor `json:"tools"`
			}{out}, nil
		},
	})

	r.Register(Tool{
		Name:        "masc_capabilities",
		Category:    CategoryDiscovery,
		Description: "Report the union of every joined agent's capabilities.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agents, err := s.Agents(ctx)
			if err != nil {
				return nil, err
			}
			seen := map[string]struct{}{}
			var caps []string
			for _, a := range agents {
				for _, c := range a.Capabilities {
					if _, ok := seen[c]; !ok {
						seen[c] = struct{}{}
						caps = append(caps, c)
					}
				}
			}
			sort.Strings(caps)
			return struct {
				Capabilities []string `json:"capabilities"`
			}{caps}, nil
		},
	})
}

// enabledSet converts a Room.Mode slice into the Category-keyed set
// List expects; an empty slice means "every category".
func enabledSet(mode []string) map[Category]bool {
	if len(mode) == 0 {
		return nil
	}
	out := make(map[Category]bool, len(mode))
	for _, m := range mode {
		out[Category(m)] = true
	}
	return out
}
