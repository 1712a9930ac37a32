// Package profiles loads investor and startup profiles by id, reading through
// a Redis cache in front of Postgres.
package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"investlink-workers/internal/common/database"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/metrics"
	"investlink-workers/internal/matching"
	"investlink-workers/internal/models"
)

var (
	ErrProfileNotFound     = errors.New("PROFILE_NOT_FOUND")
	ErrProfileLookupFailed = errors.New("PROFILE_LOOKUP_FAILED")
)

const (
	KindInvestor = "investor"
	KindStartup  = "startup"
)

// Investor is a stored investor with the contact details used for notifications.
type Investor struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Email   string                 `json:"email"`
	Profile models.InvestorProfile `json:"profile"`
}

type Startup struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Profile models.StartupProfile `json:"profile"`
}

type Store struct {
	db     *sql.DB
	cache  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

// NewStore builds a store. cache may be nil, in which case every lookup goes
// to Postgres.
func NewStore(db *sql.DB, cache *database.RedisClient, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "profile-store"}),
	}
}

func cacheKey(kind, id string) string {
	return "profile:" + kind + ":" + id
}

func (s *Store) Investor(ctx context.Context, id string) (*Investor, error) {
	var inv Investor
	if s.fromCache(ctx, KindInvestor, id, &inv) {
		return &inv, nil
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT name, email, profile FROM investors WHERE id = $1`, id,
	).Scan(&inv.Name, &inv.Email, &raw)
	if err != nil {
		return nil, lookupError(KindInvestor, id, err)
	}

	fields, err := decodeProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: investor %s: %v", ErrProfileLookupFailed, id, err)
	}
	profile, err := matching.NormalizeInvestor(fields)
	if err != nil {
		return nil, fmt.Errorf("investor %s: %w", id, err)
	}

	inv.ID = id
	inv.Profile = profile
	s.toCache(ctx, KindInvestor, id, inv)
	return &inv, nil
}

func (s *Store) Startup(ctx context.Context, id string) (*Startup, error) {
	var st Startup
	if s.fromCache(ctx, KindStartup, id, &st) {
		return &st, nil
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT name, profile FROM startups WHERE id = $1`, id,
	).Scan(&st.Name, &raw)
	if err != nil {
		return nil, lookupError(KindStartup, id, err)
	}

	fields, err := decodeProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: startup %s: %v", ErrProfileLookupFailed, id, err)
	}
	profile, err := matching.NormalizeStartup(fields)
	if err != nil {
		return nil, fmt.Errorf("startup %s: %w", id, err)
	}

	st.ID = id
	st.Profile = profile
	s.toCache(ctx, KindStartup, id, st)
	return &st, nil
}

// Invalidate drops cached entries for the given kind and ids.
func (s *Store) Invalidate(ctx context.Context, kind string, ids ...string) error {
	if s.cache == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(kind, id)
	}
	return s.cache.Del(ctx, keys...)
}

func (s *Store) fromCache(ctx context.Context, kind, id string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	err := s.cache.GetJSON(ctx, cacheKey(kind, id), dest)
	switch {
	case err == nil:
		metrics.ProfileCacheLookups.WithLabelValues(kind, "hit").Inc()
		return true
	case errors.Is(err, database.ErrCacheMiss):
		metrics.ProfileCacheLookups.WithLabelValues(kind, "miss").Inc()
	default:
		metrics.ProfileCacheLookups.WithLabelValues(kind, "error").Inc()
		s.logger.Warn("profile cache read failed", map[string]interface{}{
			"kind":  kind,
			"id":    id,
			"error": err.Error(),
		})
	}
	return false
}

// toCache is best effort; a failed write only costs a later database read.
func (s *Store) toCache(ctx context.Context, kind, id string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, cacheKey(kind, id), value, s.ttl); err != nil {
		s.logger.Warn("profile cache write failed", map[string]interface{}{
			"kind":  kind,
			"id":    id,
			"error": err.Error(),
		})
	}
}

func decodeProfile(raw []byte) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func lookupError(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", ErrProfileNotFound, kind, id)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrProfileLookupFailed, kind, id, err)
}
