package service

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate навешивает SELECT ... FOR UPDATE там, где диалект его
// поддерживает. SQLite (тесты) сериализует писателей на уровне файла,
// поэтому для него блокировка строк не нужна и не поддерживается.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
