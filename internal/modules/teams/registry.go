// Package teams provides the registry of teams the prediction engine knows about.
package teams

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnknownTeam marks names that are not in the registry
var ErrUnknownTeam = errors.New("unknown team")

// Team is one registry entry
type Team struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// Registry is an immutable, ordered set of teams. Membership is exact and case-sensitive.
type Registry struct {
	teams  []Team
	byName map[string]Team
}

// NewRegistry builds a registry, rejecting blank and duplicate names.
func NewRegistry(teams []Team) (*Registry, error) {
	r := &Registry{
		teams:  make([]Team, 0, len(teams)),
		byName: make(map[string]Team, len(teams)),
	}
	for _, t := range teams {
		t.Name = strings.TrimSpace(t.Name)
		t.ShortName = strings.TrimSpace(t.ShortName)
		if t.Name == "" {
			return nil, errors.New("team name must not be empty")
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate team %q", t.Name)
		}
		if t.ShortName == "" {
			t.ShortName = t.Name
		}
		r.teams = append(r.teams, t)
		r.byName[t.Name] = t
	}
	return r, nil
}

// Load reads a registry from a CSV file with a "name,short_name" header.
// An empty path yields the built-in registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open teams file: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse teams file %s: %w", path, err)
	}
	return r, nil
}

// Parse reads registry CSV. The first row is a header and is skipped; the first
// column is the name and the optional second column the short name.
func Parse(r io.Reader) (*Registry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("teams file is empty")
	}

	teams := make([]Team, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t := Team{Name: rec[0]}
		if len(rec) > 1 {
			t.ShortName = rec[1]
		}
		teams = append(teams, t)
	}
	if len(teams) == 0 {
		return nil, errors.New("teams file has no teams")
	}
	return NewRegistry(teams)
}

// All returns the teams in registry order
func (r *Registry) All() []Team {
	out := make([]Team, len(r.teams))
	copy(out, r.teams)
	return out
}

// Contains reports whether name is a registered team
func (r *Registry) Contains(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Len returns the number of teams
func (r *Registry) Len() int {
	return len(r.teams)
}

// Default returns the built-in Premier League registry
func Default() *Registry {
	r, err := NewRegistry([]Team{
		{Name: "Arsenal", ShortName: "ARS"},
		{Name: "Aston Villa", ShortName: "AVL"},
		{Name: "Bournemouth", ShortName: "BOU"},
		{Name: "Brentford", ShortName: "BRE"},
		{Name: "Brighton", ShortName: "BHA"},
		{Name: "Chelsea", ShortName: "CHE"},
		{Name: "Crystal Palace", ShortName: "CRY"},
		{Name: "Everton", ShortName: "EVE"},
		{Name: "Fulham", ShortName: "FUL"},
		{Name: "Ipswich Town", ShortName: "IPS"},
		{Name: "Leicester City", ShortName: "LEI"},
		{Name: "Liverpool", ShortName: "LIV"},
		{Name: "Manchester City", ShortName: "MCI"},
		{Name: "Manchester United", ShortName: "MUN"},
		{Name: "Newcastle United", ShortName: "NEW"},
		{Name: "Nottingham Forest", ShortName: "NFO"},
		{Name: "Southampton", ShortName: "SOU"},
		{Name: "Tottenham Hotspur", ShortName: "TOT"},
		{Name: "West Ham United", ShortName: "WHU"},
		{Name: "Wolverhampton Wanderers", ShortName: "WOL"},
	})
	if err != nil {
		panic(err)
	}
	return r
}
