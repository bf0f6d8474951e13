package lookup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
)

// MongoDBProvider finds one document in the collection named by the query spec.
// Every parameter becomes an equality filter; "id" maps to "_id".
type MongoDBProvider struct {
	client   *mongo.Client
	database string
}

func NewMongoDBProvider(client *mongo.Client, database string) *MongoDBProvider {
	return &MongoDBProvider{
		client:   client,
		database: database,
	}
}

func (p *MongoDBProvider) Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
	if spec.Name == "" {
		return nil, apperrors.ErrValidation.WithMessage("collection is required for MongoDB lookups")
	}

	filter := mongoFilter(spec.Params)
	if len(filter) == 0 {
		return nil, apperrors.ErrValidation.WithMessage("at least one parameter is required for MongoDB lookups")
	}

	collection := p.client.Database(p.database).Collection(spec.Name)

	var result bson.M
	err := collection.FindOne(ctx, filter, options.FindOne()).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("document not found in %s", spec.Name))
	}
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable.WithMessage("mongodb query failed").WithCause(err)
	}

	resultMap := make(map[string]any, len(result))
	for key, value := range result {
		resultMap[key] = value
	}

	return resultMap, nil
}

func mongoFilter(params inbound.QuerySpecParams) bson.M {
	filter := bson.M{}
	for k, v := range params {
		if k == "id" {
			k = "_id"
		}
		filter[k] = v
	}
	return filter
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgreSQLProvider selects one row from the table named by the query spec.
// Every parameter becomes an equality condition. Identifiers are checked
// against a strict pattern since they cannot be bound as arguments.
type PostgreSQLProvider struct {
	db *sql.DB
}

func NewPostgreSQLProvider(db *sql.DB) *PostgreSQLProvider {
	return &PostgreSQLProvider{
		db: db,
	}
}

func (p *PostgreSQLProvider) Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
	query, args, err := buildSelect(spec)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable.WithMessage("postgresql query failed").WithCause(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, apperrors.ErrServiceUnavailable.WithMessage("postgresql read failed").WithCause(err)
		}
		return nil, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("row not found in %s", spec.Name))
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("postgresql scan failed: %w", err)
	}

	result := make(map[string]any, len(columns))
	for i, col := range columns {
		val := values[i]

		if bytes, ok := val.([]byte); ok {
			var jsonVal any
			if err := json.Unmarshal(bytes, &jsonVal); err == nil {
				result[col] = jsonVal
			} else {
				result[col] = string(bytes)
			}
		} else {
			result[col] = val
		}
	}

	return result, nil
}

func buildSelect(spec inbound.QuerySpec) (string, []any, error) {
	if !identifierPattern.MatchString(spec.Name) {
		return "", nil, apperrors.ErrValidation.WithMessage(fmt.Sprintf("invalid table name %q", spec.Name))
	}

	keys := sortedParams(spec.Params, nil)
	if len(keys) == 0 {
		return "", nil, apperrors.ErrValidation.WithMessage("at least one parameter is required for PostgreSQL lookups")
	}

	conditions := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		if !identifierPattern.MatchString(k) {
			return "", nil, apperrors.ErrValidation.WithMessage(fmt.Sprintf("invalid column name %q", k))
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", k, i+1))
		args = append(args, spec.Params[k])
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1", spec.Name, strings.Join(conditions, " AND "))
	return query, args, nil
}
