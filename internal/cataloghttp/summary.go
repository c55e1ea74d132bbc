package cataloghttp

import (
	"net/http"
	"time"

	"github.com/keithlinneman/dsa-learning-api/internal/catalog"
)

// SummaryResponse describes the loaded catalog for operators.
type SummaryResponse struct {
	Version    string    `json:"version"`
	Hash       string    `json:"sha256"`
	Modules    []string  `json:"modules"`
	NumModules int       `json:"module_count"`
	Levels     []string  `json:"levels"`
	LoadedAt   time.Time `json:"loaded_at"`
	ServerTime time.Time `json:"server_time"`
}

// HandleSummary serves SummaryResponse. It is mounted on the ops listener
// at /-/catalog, not on the public router.
func (api *API) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mods := api.catalog.Modules()
	resp := SummaryResponse{
		Version:    api.catalog.Version(),
		Hash:       api.catalog.Hash(),
		Modules:    mods,
		NumModules: len(mods),
		Levels:     catalog.LevelNames(),
		LoadedAt:   api.catalog.LoadedAt().UTC().Truncate(time.Second),
		ServerTime: api.now().UTC().Truncate(time.Second),
	}
	w.Header().Set("Cache-Control", "no-cache")
	api.writeJSON(ctx, w, http.StatusOK, resp)
}
