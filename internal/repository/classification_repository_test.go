package repository

import (
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=fer dbname=fer sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func TestClassificationLogTableName(t *testing.T) {
	if got := (ClassificationLog{}).TableName(); got != "classification_logs" {
		t.Fatalf("unexpected table name %q", got)
	}
}

func TestCountByLabelQuery(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var counts []LabelCount
		return tx.Model(&ClassificationLog{}).
			Select("label, count(*) as count").
			Group("label").
			Order("label").
			Scan(&counts)
	})

	for _, want := range []string{`FROM "classification_logs"`, "GROUP BY", "count(*)"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in %q", want, sql)
		}
	}
}

func TestSaveLogQuery(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Create(&ClassificationLog{RequestID: "req-1", Label: "happiness", Source: "gallery"})
	})
	if !strings.Contains(sql, `INSERT INTO "classification_logs"`) {
		t.Fatalf("unexpected insert statement %q", sql)
	}
	if !strings.Contains(sql, "req-1") {
		t.Fatalf("expected request id in %q", sql)
	}
}
