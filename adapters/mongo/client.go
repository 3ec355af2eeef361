package mongo

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultURI              = "mongodb://localhost:27017"
	defaultDatabase         = "lumen"
	defaultMaxPoolSize      = 10
	defaultMinPoolSize      = 1
	defaultMaxConnIdleTime  = 30 * time.Minute
	defaultSelectionTimeout = 5 * time.Second
	defaultConnectTimeout   = 10 * time.Second
)

// ClientConfig configures the conversation store connection
type ClientConfig struct {
	URI              string
	Database         string
	MaxPoolSize      uint64
	MinPoolSize      uint64
	MaxConnIdleTime  time.Duration
	SelectionTimeout time.Duration
	ConnectTimeout   time.Duration
}

// ClientConfigFromEnv builds a config from environment variables
func ClientConfigFromEnv() ClientConfig {
	return ClientConfig{
		URI:      os.Getenv("MONGODB_URI"),
		Database: os.Getenv("MONGODB_DATABASE"),
	}
}

// Validate validates the ClientConfig
func (c ClientConfig) Validate() error {
	if c.MinPoolSize > c.MaxPoolSize && c.MaxPoolSize != 0 {
		return fmt.Errorf("min pool size %d exceeds max pool size %d", c.MinPoolSize, c.MaxPoolSize)
	}
	if c.MaxConnIdleTime < 0 {
		return fmt.Errorf("max connection idle time must be positive, got %v", c.MaxConnIdleTime)
	}
	if c.SelectionTimeout < 0 || c.ConnectTimeout < 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func (c ClientConfig) withDefaults(logger *zap.Logger) ClientConfig {
	if c.URI == "" {
		c.URI = defaultURI
		logger.Info("Using default MongoDB URI", zap.String("uri", c.URI))
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MinPoolSize == 0 {
		c.MinPoolSize = defaultMinPoolSize
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	if c.SelectionTimeout == 0 {
		c.SelectionTimeout = defaultSelectionTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return c
}

// Client wraps the MongoDB client and the conversation database
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to the conversation store and verifies the
// connection with a ping before returning.
func NewClient(ctx context.Context, config ClientConfig, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults(logger)

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxConnIdleTime).
		SetServerSelectionTimeout(config.SelectionTimeout).
		SetConnectTimeout(config.ConnectTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to conversation store",
		zap.String("database", config.Database))

	return &Client{
		Client:   client,
		Database: client.Database(config.Database),
		logger:   logger,
	}, nil
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
