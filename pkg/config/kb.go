package config

import "fmt"

// KnowledgeBaseConfig configures the tool corpus index.
type KnowledgeBaseConfig struct {
	// Collection is the retrieval index name.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"title=Collection,default=tool-corpus"`

	// Prefix is the object-storage location the corpus lives under.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty" jsonschema:"title=Prefix,default=kb-data/"`

	// PollInterval between ingestion-job status checks, in seconds.
	PollInterval int `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty" jsonschema:"title=Poll Interval,default=5"`

	// IngestTimeout bounds the wait for an ingestion job, in seconds.
	IngestTimeout int `yaml:"ingest_timeout,omitempty" json:"ingest_timeout,omitempty" jsonschema:"title=Ingest Timeout,default=600"`
}

func (c *KnowledgeBaseConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = envString("KB_COLLECTION", "tool-corpus")
	}
	if c.Prefix == "" {
		c.Prefix = envString("KB_PREFIX", "kb-data/")
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5
	}
	if c.IngestTimeout == 0 {
		c.IngestTimeout = 600
	}
}

func (c *KnowledgeBaseConfig) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("knowledge_base: collection is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("knowledge_base: poll_interval must be positive")
	}
	return nil
}
