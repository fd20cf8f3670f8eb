// Package gpamongo reads entity metadata from BSON-tagged models and checks
// it against a live MongoDB database.
package gpamongo

import (
	"context"
	"fmt"
	"time"

	"github.com/lemmego/gpameta"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// =====================================
// Connection
// =====================================

// Open connects to MongoDB, pings the primary and returns the configured database.
// Callers disconnect through db.Client().
func Open(ctx context.Context, config gpameta.Config) (*mongo.Database, error) {
	clientOpts := options.Client().ApplyURI(buildConnectionURI(config))
	if opts, ok := config.Options["mongo"].(map[string]any); ok {
		applyClientOptions(clientOpts, opts)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "failed to connect to MongoDB", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "failed to ping MongoDB", err)
	}
	return client.Database(config.Database), nil
}

// buildConnectionURI builds MongoDB connection URI
func buildConnectionURI(config gpameta.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	uri := "mongodb://"
	if config.Username != "" {
		uri += config.Username
		if config.Password != "" {
			uri += ":" + config.Password
		}
		uri += "@"
	}

	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 27017
	}
	uri += fmt.Sprintf("%s:%d", host, port)

	if config.Database != "" {
		uri += "/" + config.Database
	}

	if config.SSL.Enabled {
		uri += "?ssl=true"
		if config.SSL.CAFile != "" {
			uri += "&sslCAFile=" + config.SSL.CAFile
		}
		if config.SSL.CertFile != "" {
			uri += "&sslCertificateKeyFile=" + config.SSL.CertFile
		}
	}
	return uri
}

// applyClientOptions applies the "mongo" adapter options. Integers may arrive
// as int or, when decoded from YAML or JSON, as float64.
func applyClientOptions(clientOpts *options.ClientOptions, mongoOpts map[string]any) {
	if v, ok := intOption(mongoOpts, "max_pool_size"); ok {
		clientOpts.SetMaxPoolSize(uint64(v))
	}
	if v, ok := intOption(mongoOpts, "min_pool_size"); ok {
		clientOpts.SetMinPoolSize(uint64(v))
	}
	if v, ok := durationOption(mongoOpts, "max_idle_time"); ok {
		clientOpts.SetMaxConnIdleTime(v)
	}
	if v, ok := durationOption(mongoOpts, "server_selection_timeout"); ok {
		clientOpts.SetServerSelectionTimeout(v)
	}
	if v, ok := mongoOpts["app_name"].(string); ok {
		clientOpts.SetAppName(v)
	}
}

func intOption(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func durationOption(opts map[string]any, key string) (time.Duration, bool) {
	switch v := opts[key].(type) {
	case time.Duration:
		return v, true
	case string:
		d, err := time.ParseDuration(v)
		return d, err == nil
	}
	return 0, false
}

// =====================================
// Validator
// =====================================

// Validator checks that every mapped collection exists. Documents carry no
// fixed schema, so fields are not checked.
type Validator struct {
	db *mongo.Database
}

// NewValidator creates a validator over db
func NewValidator(db *mongo.Database) *Validator {
	return &Validator{db: db}
}

// Validate reports every collection the source set maps to that the database lacks
func (v *Validator) Validate(ctx context.Context, set *gpameta.SourceSet) (*gpameta.ValidationReport, error) {
	expected, err := set.ExpectedTables()
	if err != nil {
		return nil, err
	}
	names, err := v.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, convertMongoError(err)
	}
	inspector := collectionInspector{collections: make(map[string]bool, len(names))}
	for _, name := range names {
		inspector.collections[name] = true
	}
	return gpameta.CheckTables(expected, inspector)
}

type collectionInspector struct {
	collections map[string]bool
}

func (i collectionInspector) HasTable(table string) (bool, error) {
	return i.collections[table], nil
}

func (i collectionInspector) HasColumn(string, string) (bool, error) {
	return true, nil
}
