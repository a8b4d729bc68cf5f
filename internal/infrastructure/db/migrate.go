package db

import (
	"village-banking/internal/domain/contribution"
	"village-banking/internal/domain/group"
	"village-banking/internal/domain/loan"
	"village-banking/internal/domain/member"
	"village-banking/internal/domain/penalty"

	"gorm.io/gorm"
)

// Models lists every ledger table in dependency order.
func Models() []any {
	return []any{
		&group.Group{},
		&member.Member{},
		&penalty.Penalty{},
		&contribution.Contribution{},
		&contribution.Credit{},
		&loan.Loan{},
		&loan.Repayment{},
	}
}

// Migrate creates or updates the schema, unique indexes included.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
