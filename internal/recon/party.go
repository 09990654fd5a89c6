package recon

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// resolveParty matches a counterparty name against the known parties of the
// given kinds. Strategies in priority order: exact case-insensitive match,
// containment either way, then the closest name within the configured
// levenshtein bound. The bound keeps the heuristic's confidence bounded; a
// zero bound disables the fuzzy pass entirely.
func (e *Engine) resolveParty(name string, kinds ...domain.PartyKind) (*domain.Party, error) {
	if name == "" {
		return nil, nil
	}

	var candidates []*domain.Party
	for _, kind := range kinds {
		parties, err := e.parties.FindByKind(kind)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, parties...)
	}

	// Repositories do not promise an order; ties must resolve the same
	// party on every run
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	for _, p := range candidates {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}

	lower := strings.ToLower(name)
	for _, p := range candidates {
		pn := strings.ToLower(p.Name)
		if pn != "" && (strings.Contains(lower, pn) || strings.Contains(pn, lower)) {
			return p, nil
		}
	}

	if e.cfg.NameDistanceMax <= 0 {
		return nil, nil
	}

	var best *domain.Party
	bestDistance := e.cfg.NameDistanceMax + 1
	for _, p := range candidates {
		distance := levenshtein.DistanceForStrings(
			[]rune(strings.ToLower(p.Name)), []rune(lower), levenshtein.DefaultOptions)
		if distance < bestDistance {
			bestDistance = distance
			best = p
		}
	}
	return best, nil
}
