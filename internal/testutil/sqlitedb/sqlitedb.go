// Package sqlitedb opens a migrated in-memory ledger for tests.
package sqlitedb

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"village-banking/internal/domain/group"
	"village-banking/internal/domain/member"
	infradb "village-banking/internal/infrastructure/db"
)

// Open returns a fresh schema on a single connection, so the in-memory
// database survives between statements and writers queue on it.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := infradb.Migrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gdb
}

// SeedGroup inserts a group with monthly contribution 5000, multiplier 3 and
// 10% interest; mutate adjusts it before insert.
func SeedGroup(t testing.TB, gdb *gorm.DB, groupID string, mutate ...func(*group.Group)) *group.Group {
	t.Helper()
	g := &group.Group{
		GroupID:             groupID,
		Name:                "Group " + groupID,
		MonthlyContribution: decimal.NewFromInt(5000),
		SocialFundAmount:    decimal.NewFromInt(500),
		LateContributionFee: decimal.NewFromInt(1000),
		LateMeetingFine:     decimal.NewFromInt(2000),
		MissedMeetingFine:   decimal.NewFromInt(3000),
		PenaltyAmount:       decimal.NewFromInt(1500),
		InterestRate:        decimal.NewFromInt(10),
		MaxLoanMultiplier:   decimal.NewFromInt(3),
	}
	for _, m := range mutate {
		m(g)
	}
	if err := gdb.Create(g).Error; err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return g
}

// SeedMember inserts an ACTIVE membership.
func SeedMember(t testing.TB, gdb *gorm.DB, groupID, userID string, role member.Role) *member.Member {
	t.Helper()
	m := &member.Member{GroupID: groupID, UserID: userID, Role: role, Status: member.StatusActive}
	if err := gdb.Create(m).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return m
}
