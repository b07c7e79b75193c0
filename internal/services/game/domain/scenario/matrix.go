package scenario

// Credibility matrix bounds and defaults. The diagonal is pinned at full
// credibility; every other missing cell starts at the neutral base.
const (
	DefaultBaseCredibility = 50
	DiagonalCredibility    = 100
	MinCredibility         = 0
	MaxCredibility         = 100
)

// MatrixValues holds directed starting credibility between factions,
// keyed source then target.
type MatrixValues map[string]map[string]int

// DefaultFactions lists the canonical factions of the built-in matrix.
var DefaultFactions = []string{
	"Governments",
	"Corporations",
	"HardwareManufacturers",
	"Regulators",
	"CivilSociety",
	"ScientificCommunity",
}

// defaultMatrix mirrors the shipped credibility matrix content.
var defaultMatrix = MatrixValues{
	"Governments": {
		"Governments": 100, "Corporations": 35, "HardwareManufacturers": 70,
		"Regulators": 65, "CivilSociety": 55, "ScientificCommunity": 75,
	},
	"Corporations": {
		"Governments": 45, "Corporations": 100, "HardwareManufacturers": 85,
		"Regulators": 30, "CivilSociety": 20, "ScientificCommunity": 55,
	},
	"HardwareManufacturers": {
		"Governments": 70, "Corporations": 80, "HardwareManufacturers": 100,
		"Regulators": 55, "CivilSociety": 35, "ScientificCommunity": 60,
	},
	"Regulators": {
		"Governments": 75, "Corporations": 25, "HardwareManufacturers": 65,
		"Regulators": 100, "CivilSociety": 70, "ScientificCommunity": 80,
	},
	"CivilSociety": {
		"Governments": 50, "Corporations": 15, "HardwareManufacturers": 30,
		"Regulators": 75, "CivilSociety": 100, "ScientificCommunity": 85,
	},
	"ScientificCommunity": {
		"Governments": 65, "Corporations": 35, "HardwareManufacturers": 55,
		"Regulators": 85, "CivilSociety": 80, "ScientificCommunity": 100,
	},
}

// DefaultMatrix returns a deep copy of the built-in credibility matrix.
func DefaultMatrix() MatrixValues {
	return copyMatrix(defaultMatrix)
}

// ClampCredibility bounds a credibility value to [MinCredibility, MaxCredibility].
func ClampCredibility(value int) int {
	if value < MinCredibility {
		return MinCredibility
	}
	if value > MaxCredibility {
		return MaxCredibility
	}
	return value
}

// NormalizeMatrix fills a possibly sparse matrix so every (source, target)
// pair over the union of factions has a clamped value, the diagonal is
// pinned, and missing cells default to the neutral base.
func NormalizeMatrix(values MatrixValues, factions []string) MatrixValues {
	order := orderedUnion(factions, values)
	normalized := make(MatrixValues, len(order))
	for _, source := range order {
		row := make(map[string]int, len(order))
		provided := values[source]
		for _, target := range order {
			if source == target {
				row[target] = DiagonalCredibility
				continue
			}
			value, ok := provided[target]
			if !ok {
				value = DefaultBaseCredibility
			}
			row[target] = ClampCredibility(value)
		}
		normalized[source] = row
	}
	return normalized
}

func orderedUnion(primary []string, values MatrixValues) []string {
	seen := make(map[string]struct{})
	var order []string
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}
	for _, name := range primary {
		add(name)
	}
	for source, targets := range values {
		add(source)
		for target := range targets {
			add(target)
		}
	}
	return order
}

func copyMatrix(values MatrixValues) MatrixValues {
	copied := make(MatrixValues, len(values))
	for source, targets := range values {
		row := make(map[string]int, len(targets))
		for target, value := range targets {
			row[target] = value
		}
		copied[source] = row
	}
	return copied
}
