// Package testutil holds shared helpers for store and end-to-end tests.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTestContainer wraps a connection to a disposable test database. Tests
// that need real MongoDB call NewMongoTestContainer and are skipped when no
// instance is reachable, so the suite stays runnable without one.
type MongoTestContainer struct {
	Client *mongo.Client
	DBName string
}

// NewMongoTestContainer connects to the MongoDB named by TEST_MONGO_URI
// (default mongodb://localhost:27017) and hands back a uniquely named
// database for this test run.
func NewMongoTestContainer(t *testing.T) *MongoTestContainer {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("MongoDB not available for testing: %v", err)
		return nil
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB not responding at %s: %v", uri, err)
		return nil
	}

	dbName := "scheduler_test_" + time.Now().Format("20060102_150405_000000")
	return &MongoTestContainer{Client: client, DBName: dbName}
}

// Cleanup drops the test database and closes the connection.
func (m *MongoTestContainer) Cleanup(t *testing.T) {
	t.Helper()

	if m == nil || m.Client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Database(m.DBName).Drop(ctx); err != nil {
		t.Logf("Warning: failed to drop test database %s: %v", m.DBName, err)
	}
	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("Warning: failed to disconnect from MongoDB: %v", err)
	}
}

// GetDatabase returns the test database.
func (m *MongoTestContainer) GetDatabase() *mongo.Database {
	return m.Client.Database(m.DBName)
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("Expected no error, got: %v - %v", err, msgAndArgs)
		} else {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("Expected error, got nil - %v", msgAndArgs)
		} else {
			t.Fatal("Expected error, got nil")
		}
	}
}

// AssertEqual fails the test if expected != actual
func AssertEqual(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if expected != actual {
		if len(msgAndArgs) > 0 {
			t.Fatalf("Expected %v, got %v - %v", expected, actual, msgAndArgs)
		} else {
			t.Fatalf("Expected %v, got %v", expected, actual)
		}
	}
}

// AssertTrue fails the test if condition is false
func AssertTrue(t *testing.T, condition bool, msgAndArgs ...interface{}) {
	t.Helper()
	if !condition {
		if len(msgAndArgs) > 0 {
			t.Fatalf("Expected true, got false - %v", msgAndArgs)
		} else {
			t.Fatal("Expected true, got false")
		}
	}
}

// AssertContains fails the test if substring is not in str
func AssertContains(t *testing.T, str, substring string, msgAndArgs ...interface{}) {
	t.Helper()
	if !strings.Contains(str, substring) {
		if len(msgAndArgs) > 0 {
			t.Fatalf("Expected %q to contain %q - %v", str, substring, msgAndArgs)
		} else {
			t.Fatalf("Expected %q to contain %q", str, substring)
		}
	}
}
