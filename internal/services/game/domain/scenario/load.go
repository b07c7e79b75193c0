package scenario

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// scenarioFile is the YAML document shape for one scenario.
type scenarioFile struct {
	Factions map[string]factionSpec `yaml:"factions"`
	Matrix   MatrixValues           `yaml:"credibility"`
}

type factionSpec struct {
	Context  string        `yaml:"context"`
	Triplets []tripletSpec `yaml:"triplets"`
	Profile  profileSpec   `yaml:"profile"`
}

type tripletSpec struct {
	Initial  string `yaml:"initial_state"`
	End      string `yaml:"end_state"`
	Gap      string `yaml:"gap"`
	Severity string `yaml:"severity"`
}

type profileSpec struct {
	Background  string `yaml:"background"`
	Perks       string `yaml:"perks"`
	Weaknesses  string `yaml:"weaknesses"`
	Motivations string `yaml:"motivations"`
	Leadership  *int   `yaml:"leadership"`
	Technology  *int   `yaml:"technology"`
	Policy      *int   `yaml:"policy"`
	Network     *int   `yaml:"network"`
}

// Load reads the named scenario from contentFS (expecting <name>.yaml).
//
// A missing scenario file is not fatal: Load returns a scenario with an
// empty faction set and the default credibility matrix, and logs a warning.
// Downstream scoring then treats every faction as contributing zero.
func Load(contentFS fs.FS, name string) (Scenario, error) {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	if cleaned == "" {
		cleaned = "complete"
	}

	data, err := fs.ReadFile(contentFS, cleaned+".yaml")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("warning: scenario file %s.yaml not found; using empty triplet set", cleaned)
			return Scenario{
				Name:   cleaned,
				Matrix: NormalizeMatrix(DefaultMatrix(), DefaultFactions),
			}, nil
		}
		return Scenario{}, fmt.Errorf("read scenario %s: %w", cleaned, err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", cleaned, err)
	}

	return build(cleaned, file)
}

func build(name string, file scenarioFile) (Scenario, error) {
	factions := make([]Faction, 0, len(file.Factions))
	names := make([]string, 0, len(file.Factions))
	for factionName := range file.Factions {
		names = append(names, factionName)
	}
	sort.Strings(names)

	for _, factionName := range names {
		spec := file.Factions[factionName]
		faction, err := buildFaction(factionName, spec)
		if err != nil {
			return Scenario{}, err
		}
		factions = append(factions, faction)
	}

	matrix := file.Matrix
	if len(matrix) == 0 {
		matrix = DefaultMatrix()
	}
	order := make([]string, 0, len(DefaultFactions)+len(names))
	order = append(order, DefaultFactions...)
	order = append(order, names...)

	return Scenario{
		Name:     name,
		Factions: factions,
		Matrix:   NormalizeMatrix(matrix, order),
	}, nil
}

func buildFaction(name string, spec factionSpec) (Faction, error) {
	if strings.TrimSpace(name) == "" {
		return Faction{}, ErrEmptyName
	}

	triplets := make([]Triplet, 0, len(spec.Triplets))
	for _, t := range spec.Triplets {
		triplets = append(triplets, Triplet{
			Initial:  t.Initial,
			End:      t.End,
			Gap:      t.Gap,
			Severity: normalizeSeverity(name, t.Severity),
		})
	}

	attributes := map[Attribute]int{
		AttributeLeadership: clampAttribute(name, AttributeLeadership, spec.Profile.Leadership),
		AttributeTechnology: clampAttribute(name, AttributeTechnology, spec.Profile.Technology),
		AttributePolicy:     clampAttribute(name, AttributePolicy, spec.Profile.Policy),
		AttributeNetwork:    clampAttribute(name, AttributeNetwork, spec.Profile.Network),
	}

	return Faction{
		Name:     name,
		Context:  spec.Context,
		Triplets: triplets,
		Profile: Profile{
			Background:  spec.Profile.Background,
			Perks:       spec.Profile.Perks,
			Weaknesses:  spec.Profile.Weaknesses,
			Motivations: spec.Profile.Motivations,
			Attributes:  attributes,
		},
	}, nil
}

func normalizeSeverity(faction, raw string) Severity {
	switch Severity(strings.TrimSpace(raw)) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityLarge:
		return SeverityLarge
	case SeverityModerate:
		return SeverityModerate
	case SeveritySmall:
		return SeveritySmall
	case "":
		return SeveritySmall
	default:
		log.Printf("warning: unknown gap severity %q for faction %q; defaulting to Small", raw, faction)
		return SeveritySmall
	}
}

func clampAttribute(faction string, attribute Attribute, value *int) int {
	if value == nil {
		return 0
	}
	clamped := *value
	if clamped < 0 || clamped > 10 {
		log.Printf("warning: attribute %s=%d out of range [0,10] for faction %q; clamping", attribute, *value, faction)
	}
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 10 {
		clamped = 10
	}
	return clamped
}
