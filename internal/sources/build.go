package sources

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tbourn/visa-track-backend/internal/config"
	"github.com/tbourn/visa-track-backend/internal/lookup"
)

// Deps are the shared clients adapters are built from. Fields for sources
// not named in the order may be nil.
type Deps struct {
	DB         *gorm.DB
	Redis      redis.UniversalClient
	HTTPClient *http.Client
	Local      *Local // reused when the caller already owns the table
}

// Build returns the adapters named in cfg.Sources, in that order.
func Build(cfg config.LookupConfig, d Deps) ([]lookup.Source, error) {
	out := make([]lookup.Source, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		switch name {
		case "remote":
			if cfg.RemoteURL == "" {
				return nil, fmt.Errorf("source remote: no url configured")
			}
			out = append(out, NewRemote(cfg.RemoteURL, cfg.RemoteTimeout, d.HTTPClient))
		case "document":
			if d.DB == nil {
				return nil, fmt.Errorf("source document: no database")
			}
			out = append(out, NewDocument(d.DB))
		case "local":
			switch {
			case d.Local != nil:
				out = append(out, d.Local)
			case d.Redis != nil:
				out = append(out, NewLocal(d.Redis, cfg.LocalStoreKey))
			default:
				return nil, fmt.Errorf("source local: no redis client")
			}
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return out, nil
}
