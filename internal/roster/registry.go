package roster

import (
	"errors"
	"fmt"
)

// Registry is the read-only roster for a session. Lookups never mutate it.
type Registry struct {
	bots      []*BotProfile
	teams     []*Team
	botsByID  map[string]*BotProfile
	teamsByID map[string]*Team
}

// NewRegistry indexes bots and teams, rejecting nil entries and duplicate ids.
func NewRegistry(bots []*BotProfile, teams []*Team) (*Registry, error) {
	r := &Registry{
		bots:      make([]*BotProfile, 0, len(bots)),
		teams:     make([]*Team, 0, len(teams)),
		botsByID:  make(map[string]*BotProfile, len(bots)),
		teamsByID: make(map[string]*Team, len(teams)),
	}
	var errs []error
	for _, b := range bots {
		if b == nil {
			errs = append(errs, errors.New("nil bot profile"))
			continue
		}
		if _, dup := r.botsByID[b.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate bot id %q", b.ID))
			continue
		}
		r.botsByID[b.ID] = b
		r.bots = append(r.bots, b)
	}
	for _, t := range teams {
		if t == nil {
			errs = append(errs, errors.New("nil team"))
			continue
		}
		if _, dup := r.teamsByID[t.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate team id %q", t.ID))
			continue
		}
		r.teamsByID[t.ID] = t
		r.teams = append(r.teams, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Bots returns the roster in manifest order.
func (r *Registry) Bots() []*BotProfile {
	if r == nil {
		return nil
	}
	return append([]*BotProfile(nil), r.bots...)
}

// Teams returns the teams in manifest order.
func (r *Registry) Teams() []*Team {
	if r == nil {
		return nil
	}
	return append([]*Team(nil), r.teams...)
}

// Len returns the number of bots.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.bots)
}

// Bot looks up a bot by id.
func (r *Registry) Bot(id string) (*BotProfile, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.botsByID[id]
	return b, ok
}

// Team looks up a team by id.
func (r *Registry) Team(id string) (*Team, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.teamsByID[id]
	return t, ok
}

// Default returns the fallback persona: the first bot in the roster.
func (r *Registry) Default() (*BotProfile, bool) {
	if r == nil || len(r.bots) == 0 {
		return nil, false
	}
	return r.bots[0], true
}

// TeamMembers resolves a team's members in order, skipping unknown ids.
func (r *Registry) TeamMembers(t *Team) []*BotProfile {
	if t == nil {
		return nil
	}
	return r.Resolve(t.MemberIDs)
}

// Resolve maps ids to profiles in order, skipping unknown and repeated ids.
func (r *Registry) Resolve(ids []string) []*BotProfile {
	out := make([]*BotProfile, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if b, ok := r.Bot(id); ok {
			out = append(out, b)
			seen[id] = true
		}
	}
	return out
}

// Related returns ids named in the relationship maps of the given bots that
// exist in the roster and are not part of the selection, in roster order.
func (r *Registry) Related(ids []string) []string {
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	related := make(map[string]bool)
	for _, b := range r.Resolve(ids) {
		for otherID := range b.Relationships {
			related[otherID] = true
		}
	}
	var out []string
	for _, b := range r.Bots() {
		if related[b.ID] && !selected[b.ID] {
			out = append(out, b.ID)
		}
	}
	return out
}
