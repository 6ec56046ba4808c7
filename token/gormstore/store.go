package gormstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-passwordless/token"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ token.Store = (*Store)(nil)

// TokenRow is the table layout of a stored token.
type TokenRow struct {
	Fingerprint string    `gorm:"primaryKey;size:64"`
	UID         string    `gorm:"index;not null"`
	ExpiresAt   time.Time `gorm:"index"`
	Origin      string
	CreatedAt   time.Time
}

func (TokenRow) TableName() string {
	return "passwordless_tokens"
}

func (r *TokenRow) record() *token.Record {
	return &token.Record{
		Fingerprint: r.Fingerprint,
		UID:         r.UID,
		ExpiresAt:   r.ExpiresAt,
		Origin:      r.Origin,
		CreatedAt:   r.CreatedAt,
	}
}

// Store keeps token records in any SQL database supported by GORM.
type Store struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

type Option func(*Store)

// WithNowFunc sets the clock used for expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// New migrates the token table and returns the store.
func New(db *gorm.DB, options ...Option) (*Store, error) {
	if err := db.AutoMigrate(&TokenRow{}); err != nil {
		return nil, errors.Wrap(err, "[gormstore.New] AutoMigrate")
	}

	s := &Store{
		db:      db,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) Store(ctx context.Context, tok, uid string, ttl time.Duration, origin string) error {
	if err := token.Validate(tok, uid, ttl); err != nil {
		return err
	}

	record := token.NewRecord(tok, uid, ttl, origin, s.nowFunc())
	row := TokenRow{
		Fingerprint: record.Fingerprint,
		UID:         record.UID,
		ExpiresAt:   record.ExpiresAt,
		Origin:      record.Origin,
		CreatedAt:   record.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return errors.Wrap(err, "[gormstore.Store] Create")
	}
	return nil
}

func (s *Store) Authenticate(ctx context.Context, tok, uid string) (*token.Record, error) {
	record, err := s.consume(ctx, token.Fingerprint(tok), uid)
	if err != nil {
		return nil, err
	}
	if record.Expired(s.nowFunc()) {
		return nil, token.ErrTokenExpired
	}
	return record, nil
}

func (s *Store) Invalidate(ctx context.Context, tok string) error {
	if err := s.db.WithContext(ctx).Delete(&TokenRow{}, "fingerprint = ?", token.Fingerprint(tok)).Error; err != nil {
		return errors.Wrap(err, "[gormstore.Invalidate] Delete")
	}
	return nil
}

// consume reads the row and deletes it conditionally; only the caller whose
// delete affects the row owns the token.
func (s *Store) consume(ctx context.Context, fp, uid string) (*token.Record, error) {
	var row TokenRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fingerprint = ?", fp).First(&row).Error; err != nil {
			return err
		}
		if !row.record().Matches(uid) {
			return token.ErrTokenNotFound
		}
		res := tx.Where("fingerprint = ? AND uid = ?", fp, row.UID).Delete(&TokenRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return token.ErrTokenNotFound
		}
		return nil
	})
	switch {
	case err == nil:
		return row.record(), nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, token.ErrTokenNotFound):
		return nil, token.ErrTokenNotFound
	default:
		return nil, errors.Wrap(err, "[gormstore.consume] Transaction")
	}
}

func (s *Store) InvalidateUser(ctx context.Context, uid string) error {
	if err := s.db.WithContext(ctx).Where("uid = ?", uid).Delete(&TokenRow{}).Error; err != nil {
		return errors.Wrap(err, "[gormstore.InvalidateUser] Delete")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TokenRow{}).Error; err != nil {
		return errors.Wrap(err, "[gormstore.Clear] Delete")
	}
	return nil
}

func (s *Store) Length(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&TokenRow{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "[gormstore.Length] Count")
	}
	return int(n), nil
}

// DeleteExpired removes rows that expired before now.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", s.nowFunc()).Delete(&TokenRow{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "[gormstore.DeleteExpired] Delete")
	}
	return res.RowsAffected, nil
}
