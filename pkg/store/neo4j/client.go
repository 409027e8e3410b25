package neo4j

import (
	"context"
	"fmt"
	"time"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/knoweave/knoweave/internal/util"
	"github.com/knoweave/knoweave/pkg/logger"
)

// Client wraps the driver plus the target database name. A nil client is a
// valid "mirror disabled" configuration; every store method tolerates it.
type Client struct {
	Driver   neo4jv5.DriverWithContext
	Database string
}

// NewFromEnv builds a client from NEO4J_* environment variables. Returns
// (nil, nil) when NEO4J_URI is unset, which disables the mirror entirely.
func NewFromEnv(ctx context.Context) (*Client, error) {
	uri := util.GetEnv("NEO4J_URI")
	if uri == "" {
		return nil, nil
	}

	user := util.GetEnvString("NEO4J_USER", "neo4j")
	password := util.GetEnv("NEO4J_PASSWORD")
	database := util.GetEnv("NEO4J_DATABASE")
	timeout := time.Duration(util.GetEnvNumeric("NEO4J_TIMEOUT_SECONDS", 10)) * time.Second
	maxPool := int(util.GetEnvNumeric("NEO4J_MAX_POOL_SIZE", 50))

	driver, err := neo4jv5.NewDriverWithContext(uri, neo4jv5.BasicAuth(user, password, ""), func(cfg *neo4jv5.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	return &Client{Driver: driver, Database: database}, nil
}

// EnsureSchema creates the uniqueness constraints the mirror relies on.
// Failures are logged and ignored; the mirror works without them, just
// slower.
func (c *Client) EnsureSchema(ctx context.Context) {
	if c == nil || c.Driver == nil {
		return
	}
	session := c.Driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT knowledge_node_public_id IF NOT EXISTS FOR (n:KnowledgeNode) REQUIRE n.public_id IS UNIQUE`,
		`CREATE INDEX knowledge_node_owner_node IF NOT EXISTS FOR (n:KnowledgeNode) ON (n.owner_id, n.node_id)`,
	}
	for _, q := range stmts {
		if res, err := session.Run(ctx, q, nil); err != nil {
			logger.Warn("[Neo4j] Schema init failed, continuing", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
