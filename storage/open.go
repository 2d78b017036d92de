package storage

import (
	"context"
	"fmt"
	"strings"

	"goa.design/clue/log"
)

// Open selects a session store from a URI:
//
//	""                  in-memory, with a warning
//	memory://           in-memory
//	sqlite://path/to.db SQLite file (sqlite://:memory: for a private database)
//	redis://host:port/0 Redis (rediss:// for TLS)
func Open(ctx context.Context, uri string) (SessionStore, error) {
	switch {
	case uri == "":
		log.Warn(ctx, log.KV{K: "msg", V: "SESSION_SERVICE_URI not set, using in-memory sessions"})
		return NewInMemoryStore(), nil
	case uri == "memory://" || uri == "memory":
		return NewInMemoryStore(), nil
	case strings.HasPrefix(uri, "sqlite://"):
		path := strings.TrimPrefix(uri, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite session URI needs a path: %q", uri)
		}
		if path == ":memory:" {
			return NewSqliteInMemory()
		}
		return OpenSqlite(path)
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		return OpenRedis(ctx, uri)
	default:
		return nil, fmt.Errorf("unsupported session URI scheme: %q", uri)
	}
}
