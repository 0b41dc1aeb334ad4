package report

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nexuscomply/backend/internal/util"
)

const (
	storePrefix      = "reports"
	downloadAudience = "report-download"
)

var (
	ErrInvalidLink    = errors.New("invalid or expired download link")
	ErrReportNotFound = errors.New("report not found")
)

// Store keeps generated documents under <root>/reports and hands out
// time-limited signed download links for them.
type Store struct {
	root   string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(root, secret string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{root: root, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Save writes content and returns its object key, reports/<uuid>_<name>.
func (s *Store) Save(name string, content []byte) (string, error) {
	key := path.Join(storePrefix, uuid.NewString()+"_"+util.SafeFilename(name))
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("store report: %w", err)
	}
	return key, nil
}

// SignedToken returns a download token for key and its expiry.
func (s *Store) SignedToken(key string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   key,
		Audience:  jwt.ClaimStrings{downloadAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Resolve validates a download token and returns the file path and the
// download name of the report it grants.
func (s *Store) Resolve(token string) (string, string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(downloadAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidLink
	}

	dir, file := path.Split(claims.Subject)
	if dir != storePrefix+"/" || file == "" || util.SafeFilename(file) != file {
		return "", "", ErrInvalidLink
	}
	full := filepath.Join(s.root, storePrefix, file)
	if _, err := os.Stat(full); err != nil {
		return "", "", ErrReportNotFound
	}

	name := file
	if i := strings.IndexByte(file, '_'); i > 0 {
		name = file[i+1:]
	}
	return full, name, nil
}
