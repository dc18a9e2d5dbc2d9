package utils

import "gorm.io/gorm"

// DBOption adjusts the *gorm.DB a repository call runs on.
type DBOption func(db *gorm.DB) *gorm.DB

func ApplyOptions(db *gorm.DB, opts ...DBOption) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt(db)
		}
	}
	return db
}

// WithTx runs the call inside tx, keeping the caller's context.
func WithTx(tx *gorm.DB) DBOption {
	return func(db *gorm.DB) *gorm.DB {
		return tx.WithContext(db.Statement.Context)
	}
}

func WithDebug() DBOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Debug()
	}
}
