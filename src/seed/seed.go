package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"reco-batch/src/config"
	"reco-batch/src/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DataGenerator builds synthetic users.
type DataGenerator struct {
	names   []string
	domains []string
	rand    *rand.Rand
}

func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		names: []string{
			"John", "Jane", "Bob", "Alice", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry",
			"Ivy", "Jack", "Kate", "Leo", "Mia", "Noah", "Olivia", "Paul", "Quinn", "Ruby",
		},
		domains: []string{"gmail.com", "hotmail.com", "yahoo.com", "company.com", "email.com"},
		rand:    rand.New(rand.NewSource(seed)),
	}
}

func (dg *DataGenerator) GenerateUser(id int) model.User {
	name := dg.names[dg.rand.Intn(len(dg.names))]
	return model.User{
		ID:        id,
		Name:      name,
		Email:     fmt.Sprintf("%s.%d@%s", strings.ToLower(name), id, dg.domains[dg.rand.Intn(len(dg.domains))]),
		CreatedAt: time.Now().Add(-time.Duration(dg.rand.Intn(365)) * 24 * time.Hour),
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS recommendation_batches (
		batch_id INTEGER PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending'
	);`,
	"CREATE INDEX IF NOT EXISTS idx_recommendation_batches_status ON recommendation_batches(status);",
}

func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// InsertUsers bulk loads count users starting after the current max id, with COPY in one transaction.
func InsertUsers(ctx context.Context, db *sql.DB, count int, log *logrus.Logger) (int, error) {
	var startID int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM users").Scan(&startID); err != nil {
		return 0, fmt.Errorf("failed to read max user id: %w", err)
	}

	txn, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Safe to call even after commit

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn("users", "id", "name", "email", "created_at"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare COPY statement: %w", err)
	}
	defer stmt.Close()

	generator := NewDataGenerator(int64(startID))
	for i := 0; i < count; i++ {
		u := generator.GenerateUser(startID + i)
		if _, err := stmt.ExecContext(ctx, u.ID, u.Name, u.Email, u.CreatedAt); err != nil {
			return 0, fmt.Errorf("failed to copy user %d: %w", u.ID, err)
		}
		if (i+1)%100_000 == 0 {
			log.Infof("Buffered %s users", formatNumber(i+1))
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to execute COPY: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close COPY statement: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Keep the BIGSERIAL sequence ahead of the explicit ids.
	if _, err := db.ExecContext(ctx, "SELECT setval(pg_get_serial_sequence('users', 'id'), (SELECT MAX(id) FROM users))"); err != nil {
		log.Warnf("Failed to advance users id sequence: %v", err)
	}

	return count, nil
}

func formatNumber(n int) string {
	str := strconv.Itoa(n)
	if len(str) <= 3 {
		return str
	}

	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return b.String()
}

func parseCount(args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing user count")
	}
	n, err := strconv.Atoi(strings.ReplaceAll(args[0], "_", ""))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid user count %q", args[0])
	}
	return n, nil
}

func main() {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	if len(os.Args) < 2 {
		log.Fatal("Usage: seed [schema|users <n>|all <n>]")
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	// Only the DSN is needed here, so Load's required keys are not enforced.
	db, err := sql.Open("postgres", config.DatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	mode := os.Args[1]
	switch mode {
	case "schema":
		if err := CreateSchema(ctx, db); err != nil {
			log.Fatal(err)
		}
		log.Info("Database schema created successfully")

	case "users", "all":
		count, err := parseCount(os.Args[2:])
		if err != nil {
			log.Fatal(err)
		}
		if mode == "all" {
			if err := CreateSchema(ctx, db); err != nil {
				log.Fatal(err)
			}
		}
		start := time.Now()
		inserted, err := InsertUsers(ctx, db, count, log)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		log.WithField("duration", time.Since(start)).Infof("Inserted %s users", formatNumber(inserted))

	default:
		log.Fatal("Invalid mode. Use: schema, users <n>, or all <n>")
	}
}
