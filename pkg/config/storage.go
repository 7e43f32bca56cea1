package config

import "fmt"

// ObjectStoreBackend selects the corpus storage implementation.
type ObjectStoreBackend string

const (
	ObjectStoreS3     ObjectStoreBackend = "s3"
	ObjectStoreMemory ObjectStoreBackend = "memory"
)

// ObjectStoreConfig configures corpus object storage.
type ObjectStoreConfig struct {
	// Backend is "s3" (any S3-compatible endpoint) or "memory".
	Backend ObjectStoreBackend `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,enum=s3,enum=memory,default=s3"`

	// Endpoint of the S3-compatible service, host[:port].
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint"`

	// Bucket holding the corpus.
	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty" jsonschema:"title=Bucket"`

	// AccessKey for authentication. Supports ${VAR} expansion.
	AccessKey string `yaml:"access_key,omitempty" json:"access_key,omitempty" jsonschema:"title=Access Key"`

	// SecretKey for authentication. Supports ${VAR} expansion.
	SecretKey string `yaml:"secret_key,omitempty" json:"secret_key,omitempty" jsonschema:"title=Secret Key"`

	// UseSSL enables TLS to the endpoint.
	UseSSL bool `yaml:"use_ssl,omitempty" json:"use_ssl,omitempty" jsonschema:"title=Use SSL"`

	// WaitInterval between existence polls, in seconds.
	WaitInterval int `yaml:"wait_interval,omitempty" json:"wait_interval,omitempty" jsonschema:"title=Wait Interval,default=1"`

	// WaitAttempts caps existence polls per key.
	WaitAttempts int `yaml:"wait_attempts,omitempty" json:"wait_attempts,omitempty" jsonschema:"title=Wait Attempts,default=30"`
}

func (c *ObjectStoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = ObjectStoreBackend(envString("OBJECT_STORE_BACKEND", string(ObjectStoreS3)))
	}
	if c.Endpoint == "" {
		c.Endpoint = envString("OBJECT_STORE_ENDPOINT", "localhost:9000")
	}
	if c.Bucket == "" {
		c.Bucket = envString("OBJECT_STORE_BUCKET", "tool-corpus")
	}
	if c.AccessKey == "" {
		c.AccessKey = envString("OBJECT_STORE_ACCESS_KEY", "")
	}
	if c.SecretKey == "" {
		c.SecretKey = envString("OBJECT_STORE_SECRET_KEY", "")
	}
	if c.WaitInterval == 0 {
		c.WaitInterval = 1
	}
	if c.WaitAttempts == 0 {
		c.WaitAttempts = 30
	}
}

func (c *ObjectStoreConfig) Validate() error {
	switch c.Backend {
	case ObjectStoreS3:
		if c.Endpoint == "" {
			return fmt.Errorf("object_store: endpoint is required for the s3 backend")
		}
		if c.Bucket == "" {
			return fmt.Errorf("object_store: bucket is required for the s3 backend")
		}
	case ObjectStoreMemory:
	default:
		return fmt.Errorf("object_store: unknown backend %q", c.Backend)
	}
	return nil
}

// VectorConfig configures the Qdrant vector database.
type VectorConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=localhost"`

	// Port is the Qdrant gRPC port.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,default=6334"`

	// APIKey for authenticated access (optional).
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// UseTLS enables TLS connections.
	UseTLS bool `yaml:"use_tls,omitempty" json:"use_tls,omitempty" jsonschema:"title=Use TLS"`
}

func (c *VectorConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = envString("QDRANT_HOST", "localhost")
	}
	if c.Port == 0 {
		c.Port = envInt("QDRANT_PORT", 6334)
	}
	if c.APIKey == "" {
		c.APIKey = envString("QDRANT_API_KEY", "")
	}
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	// Host of the Ollama server.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=http://localhost:11434"`

	// Model name for embeddings.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=nomic-embed-text"`

	// Dimension of the embedding vectors.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension,default=768"`

	// Timeout for one embedding call, in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=30"`

	// MaxRetries per embedding call.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,default=3"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = envString("EMBEDDER_HOST", "http://localhost:11434")
	}
	if c.Model == "" {
		c.Model = envString("EMBEDDER_MODEL", "nomic-embed-text")
	}
	if c.Dimension == 0 {
		c.Dimension = envInt("EMBEDDER_DIMENSION", 768)
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *EmbedderConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("embedder: dimension must be positive, got %d", c.Dimension)
	}
	return nil
}
