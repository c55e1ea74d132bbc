package catalog

import "time"

// Store is the loaded catalog. It is read-only after Load.
type Store struct {
	modules  []string
	records  map[string]map[Level]Record
	hash     string
	version  string
	loadedAt time.Time
}

// Get returns the record for module at level. Both keys must match exactly.
// The returned record is a copy.
func (s *Store) Get(module, level string) (Record, bool) {
	byLevel, ok := s.records[module]
	if !ok {
		return Record{}, false
	}
	rec, ok := byLevel[Level(level)]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Modules returns module names in definition order.
func (s *Store) Modules() []string {
	out := make([]string, len(s.modules))
	copy(out, s.modules)
	return out
}

// Len is the number of modules.
func (s *Store) Len() int { return len(s.modules) }

// Hash is the hex sha256 of the source document.
func (s *Store) Hash() string { return s.hash }

// Version labels the catalog for headers and metrics. It defaults to the
// first 12 characters of Hash.
func (s *Store) Version() string { return s.version }

func (s *Store) LoadedAt() time.Time { return s.loadedAt }

// ContentVersion and ContentHash satisfy httpmw.CatalogInfo.
func (s *Store) ContentVersion() string { return s.version }
func (s *Store) ContentHash() string    { return s.hash }
