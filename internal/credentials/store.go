// Package credentials persists the browsing session's cookies so a fragile,
// externally-owned login survives process restarts.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cartbridge/cartbridge/internal/driver"
	"github.com/cartbridge/cartbridge/internal/infrastructure/logging"
)

// sessionExtension is how far into the future a session-only cookie is
// pushed at save time. The store exists to outlive the process that would
// otherwise discard it.
const sessionExtension = 365 * 24 * time.Hour

// Store serializes the driver's cookie set to a durable file.
//
// Every failure mode here (missing file, corrupt file, expired tokens,
// write error) collapses to "proceed unauthenticated" — persistence is a
// best-effort convenience, never a correctness requirement.
type Store struct {
	path         string
	domainSuffix string
	drv          driver.Driver
	logger       *logging.Logger
	now          func() time.Time
}

// New creates a store writing to path, keeping only cookies whose domain
// matches domainSuffix (e.g. "amazon.com").
func New(path, domainSuffix string, drv driver.Driver, logger *logging.Logger) *Store {
	return &Store{
		path:         path,
		domainSuffix: domainSuffix,
		drv:          drv,
		logger:       logger,
		now:          time.Now,
	}
}

// Save reads the live cookie set, filters it to the relevant domain,
// normalizes expiries, and overwrites the durable file. Failures are logged
// and swallowed.
func (s *Store) Save(ctx context.Context) {
	cookies, err := s.drv.Cookies(ctx)
	if err != nil {
		s.logger.Warn("Cookie save skipped: driver unavailable", zap.Error(err))
		return
	}

	kept := make([]driver.Cookie, 0, len(cookies))
	farFuture := s.now().Add(sessionExtension).Unix()
	for _, c := range cookies {
		if !s.relevantDomain(c.Domain) {
			continue
		}
		if c.SessionOnly() {
			c.Expires = farFuture
		}
		kept = append(kept, c)
	}

	if err := s.writeAtomic(kept); err != nil {
		s.logger.Warn("Cookie save failed", zap.Error(err), zap.String("path", s.path))
		return
	}

	s.logger.Debug("Cookies saved",
		zap.Int("count", len(kept)),
		zap.String("path", s.path),
	)
}

// Restore reads the durable file if present, drops expired tokens, and
// applies the remainder to the driver. Returns the number of tokens
// applied; a missing, unparseable, or fully expired file yields 0.
func (s *Store) Restore(ctx context.Context) int {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("No saved cookies, starting unauthenticated", zap.String("path", s.path))
		} else {
			s.logger.Warn("Cookie file unreadable", zap.Error(err))
		}
		return 0
	}

	var cookies []driver.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		s.logger.Warn("Cookie file corrupt, starting unauthenticated",
			zap.Error(err),
			zap.String("path", s.path),
		)
		return 0
	}

	cutoff := s.now().Unix()
	valid := make([]driver.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Expires > cutoff {
			valid = append(valid, c)
		}
	}

	if len(valid) == 0 {
		s.logger.Info("All saved cookies expired, starting unauthenticated",
			zap.Int("expired", len(cookies)),
		)
		return 0
	}

	if err := s.drv.SetCookies(ctx, valid); err != nil {
		s.logger.Warn("Failed to apply saved cookies", zap.Error(err))
		return 0
	}

	s.logger.Info("Cookies restored",
		zap.Int("applied", len(valid)),
		zap.Int("dropped", len(cookies)-len(valid)),
	)
	return len(valid)
}

// IsLoggedIn is a cheap probe against the site's authenticated-only
// affordance. False on any probing failure.
func (s *Store) IsLoggedIn(ctx context.Context) bool {
	result, err := s.drv.CheckLogin(ctx)
	if err != nil || result == nil || !result.Success {
		return false
	}
	loggedIn, _ := result.Data["loggedIn"].(bool)
	return loggedIn
}

// writeAtomic writes to a temp file in the target directory and renames it
// into place, so a concurrent restore never observes a partial write.
func (s *Store) writeAtomic(cookies []driver.Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cookie dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cookies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cookie file: %w", err)
	}
	return nil
}

func (s *Store) relevantDomain(domain string) bool {
	if s.domainSuffix == "" {
		return true
	}
	d := strings.TrimPrefix(strings.ToLower(domain), ".")
	return d == s.domainSuffix || strings.HasSuffix(d, "."+s.domainSuffix)
}
