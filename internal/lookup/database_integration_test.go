package lookup

import (
	"context"
	"database/sql"
	"embed"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
)

//go:embed testdata/migrations/*.sql
var migrationsFS embed.FS

func requireContainers(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if os.Getenv("VERDICT_CONTAINER_TESTS") == "" {
		t.Skip("set VERDICT_CONTAINER_TESTS=1 to run container tests")
	}
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
}

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("lookup_db"),
		postgresmodule.WithUsername("test_user"),
		postgresmodule.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", conn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	src, err := iofs.New(migrationsFS, "testdata/migrations")
	require.NoError(t, err)
	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func setupMongo(t *testing.T) *mongo.Client {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })
	return client
}

func TestPostgreSQLProvider_Container(t *testing.T) {
	requireContainers(t)
	p := NewPostgreSQLProvider(setupPostgres(t))
	ctx := context.Background()

	out, err := p.Fetch(ctx, inbound.QuerySpec{Name: "customers", Params: inbound.QuerySpecParams{"id": "c-1"}})
	require.NoError(t, err)
	assert.Equal(t, "gold", out["tier"])
	assert.EqualValues(t, 5000, out["credit_limit"])
	assert.Equal(t, map[string]any{"region": "eu"}, out["profile"])

	_, err = p.Fetch(ctx, inbound.QuerySpec{Name: "customers", Params: inbound.QuerySpecParams{"id": "c-9"}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = p.Fetch(ctx, inbound.QuerySpec{Name: "customers; DROP TABLE customers", Params: inbound.QuerySpecParams{"id": "c-1"}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMongoDBProvider_Container(t *testing.T) {
	requireContainers(t)
	client := setupMongo(t)
	ctx := context.Background()

	_, err := client.Database("lookup_db").Collection("customers").InsertMany(ctx, []any{
		bson.M{"_id": "c-1", "tier": "gold", "region": "eu"},
		bson.M{"_id": "c-2", "tier": "basic", "region": "us"},
	})
	require.NoError(t, err)

	p := NewMongoDBProvider(client, "lookup_db")

	out, err := p.Fetch(ctx, inbound.QuerySpec{Name: "customers", Params: inbound.QuerySpecParams{"id": "c-1"}})
	require.NoError(t, err)
	assert.Equal(t, "gold", out["tier"])

	out, err = p.Fetch(ctx, inbound.QuerySpec{Name: "customers", Params: inbound.QuerySpecParams{"region": "us"}})
	require.NoError(t, err)
	assert.Equal(t, "c-2", out["_id"])

	_, err = p.Fetch(ctx, inbound.QuerySpec{Name: "customers", Params: inbound.QuerySpecParams{"id": "c-9"}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
