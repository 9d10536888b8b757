package scoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Masters age factors (Meltzer-Faber for men, the corresponding women's
// table) are distributed as data files next to the GAMX tables so federations
// can ship their own revisions: masters_m.json and masters_f.json, each a map
// of age to factor.

type mastersTables struct {
	mu     sync.Mutex
	loaded bool
	male   map[int]float64
	female map[int]float64
	dir    string
}

var masters = &mastersTables{dir: defaultDataDir()}

func defaultDataDir() string {
	if dir := os.Getenv("HUB_SCORING_DATA"); dir != "" {
		return dir
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return filepath.Join(cwd, "data")
}

// SetDataDir points the lazy table loaders at a different directory and
// drops anything already loaded.
func SetDataDir(dir string) {
	masters.mu.Lock()
	masters.dir = dir
	masters.loaded = false
	masters.male = nil
	masters.female = nil
	masters.mu.Unlock()

	gamx.mu.Lock()
	gamx.dir = dir
	gamx.tables = nil
	gamx.mu.Unlock()
}

func (t *mastersTables) load() {
	if t.loaded {
		return
	}
	t.loaded = true
	t.male = loadFactorTable(filepath.Join(t.dir, "masters_m.json"))
	t.female = loadFactorTable(filepath.Join(t.dir, "masters_f.json"))
}

func loadFactorTable(path string) map[int]float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	table := make(map[int]float64)
	if err := json.Unmarshal(data, &table); err != nil {
		return nil
	}
	return table
}

// GetMastersAgeFactor returns the age-group multiplier applied to masters
// Sinclair totals. Ages below 30, or ages outside the shipped table, score
// with factor 1.
func GetMastersAgeFactor(age int, gender string) float64 {
	if age < 30 {
		return 1
	}
	masters.mu.Lock()
	defer masters.mu.Unlock()
	masters.load()

	table := masters.male
	if gender == GenderFemale {
		table = masters.female
	}
	if table == nil {
		return 1
	}
	if factor, ok := table[age]; ok {
		return factor
	}
	// Ages past the table's end use the oldest entry.
	best := 0
	factor := 1.0
	for entry, value := range table {
		if entry <= age && entry > best {
			best = entry
			factor = value
		}
	}
	return factor
}

// CalculateMastersSinclair applies the age factor on top of the 2020
// coefficients, which masters federations still score with.
func CalculateMastersSinclair(total, bodyWeight float64, gender string, age int) float64 {
	return CalculateSinclair2020(total, bodyWeight, gender) * GetMastersAgeFactor(age, gender)
}
