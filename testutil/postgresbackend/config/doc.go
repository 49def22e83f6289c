// Package config provides PostgreSQL connection configuration for integration tests of the postgres backend.
//
// The factories return errors instead of exiting, so that tests can skip when no database is reachable.
// The DSN is read from TEST_DSN and falls back to the database of the docker compose setup.
package config
