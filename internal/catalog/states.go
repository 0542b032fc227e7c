package catalog

import (
	"context"
	"sort"

	"github.com/glefebvre/listcatalog/internal/models"
)

// ListState describes one list for a settings interface, hidden and removed lists
// included.
type ListState struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	CustomName  string                 `json:"customName,omitempty"`
	Provider    models.Provider        `json:"provider"`
	Source      models.SourceKind      `json:"source"`
	AddonID     string                 `json:"addonId,omitempty"`
	Types       []string               `json:"types"`
	CustomType  string                 `json:"customType,omitempty"`
	HasMovies   bool                   `json:"hasMovies"`
	HasShows    bool                   `json:"hasShows"`
	Mergeable   bool                   `json:"mergeable"`
	Merged      bool                   `json:"merged"`
	Hidden      bool                   `json:"hidden"`
	Removed     bool                   `json:"removed"`
	Sort        *models.SortPreference `json:"sort,omitempty"`
	ErrorProbed bool                   `json:"errorFetching,omitempty"`
}

// States reports every enumerated list with its effective preferences, in manifest
// order. Like Synthesize, it may probe; the returned config carries the results.
func (s *Synthesizer) States(ctx context.Context, cfg *models.UserConfig) ([]ListState, *models.UserConfig, bool) {
	work := cfg.Clone()
	lists := s.Enumerate(ctx, work)

	type ranked struct {
		state ListState
		rank  int
	}

	changed := false
	seen := make(map[string]struct{}, len(lists))
	out := make([]ranked, 0, len(lists))

	for discovery, list := range lists {
		key := listKey(list)
		if _, dup := seen[key]; dup || list.ID == "" {
			continue
		}
		seen[key] = struct{}{}

		state := ListState{
			ID:         list.ID,
			Name:       list.Name,
			CustomName: work.CustomListNames[list.ID],
			Provider:   list.Provider,
			Source:     list.Source,
			AddonID:    list.AddonID,
			Types:      []string{},
			CustomType: work.CustomMediaTypeNames[list.ID],
			Merged:     work.IsMerged(list.ID),
			Hidden:     work.IsHidden(list.ID),
			Removed:    work.IsRemoved(list.ID),
		}
		if pref, ok := work.SortPreferences[sortKey(list)]; ok {
			state.Sort = &pref
		}

		if !state.Removed {
			comp, probed := s.prober.Composition(ctx, work, list)
			changed = changed || probed
			state.HasMovies = comp.HasMovies
			state.HasShows = comp.HasShows
			state.Mergeable = list.Mergeable(comp)
			state.Types = emittedTypes(work, list, comp)
			state.ErrorProbed = work.ListsMetadata[list.ID].ErrorFetching
		}

		rank := work.OrderIndex(list.ID)
		if rank < 0 {
			rank = len(work.ListOrder) + discovery
		}
		out = append(out, ranked{state: state, rank: rank})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].rank < out[j].rank })

	states := make([]ListState, len(out))
	for i, r := range out {
		states[i] = r.state
	}
	return states, work, changed
}

// sortKey is the key of a list in sortPreferences: the slug for tracker lists, the
// catalog id otherwise.
func sortKey(list models.ListDescriptor) string {
	if list.Ref.SortKey != "" {
		return list.Ref.SortKey
	}
	return list.ID
}
