// Package graph projects facts into a Neo4j property graph.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"farmgraph/internal/config"
)

const connectTimeout = 10 * time.Second

// Statement is one parameterised Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Writer runs statements in a single write transaction.
type Writer interface {
	Write(ctx context.Context, statements []Statement) error
}

// Client is a Writer backed by a Neo4j driver.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Writer = (*Client)(nil)

// Open connects to the server in cfg and verifies connectivity. It returns
// nil without error when no URI is configured.
func Open(ctx context.Context, cfg config.Neo4j) (*Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = connectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Client{driver: driver, database: cfg.Database}, nil
}

// Close releases the driver. Closing a nil client is a no-op.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

// EnsureSchema creates the uniqueness constraints the projection merges on.
// Restricted users may not be allowed to create constraints; callers treat
// the error as advisory.
func (c *Client) EnsureSchema(ctx context.Context) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: c.database})
	defer func() { _ = session.Close(ctx) }()
	for _, cypher := range schemaStatements {
		res, err := session.Run(ctx, cypher, nil)
		if err != nil {
			return fmt.Errorf("neo4j: schema: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("neo4j: schema: %w", err)
		}
	}
	return nil
}

// Write runs statements in order inside one managed write transaction.
func (c *Client) Write(ctx context.Context, statements []Statement) error {
	if len(statements) == 0 {
		return nil
	}
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: c.database})
	defer func() { _ = session.Close(ctx) }()
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range statements {
			res, err := tx.Run(ctx, st.Cypher, st.Params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: write: %w", err)
	}
	return nil
}
