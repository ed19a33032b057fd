// Package vectorindex provides the read-only vector index backends behind
// rag.Index: Pinecone (the default), Qdrant and Milvus. The backend is chosen
// from the environment by ConfigFromEnv and constructed by New.
package vectorindex

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Backend identifies a supported vector index service.
type Backend string

const (
	// BackendPinecone uses a Pinecone serverless or pod index.
	BackendPinecone Backend = "pinecone"

	// BackendQdrant uses a Qdrant collection over gRPC.
	BackendQdrant Backend = "qdrant"

	// BackendMilvus uses a Milvus collection with a float vector field.
	BackendMilvus Backend = "milvus"
)

// Metadata keys written by the ingestion job alongside every vector.
const (
	defaultTextField  = "text"
	defaultTitleField = "title"
	defaultPathField  = "file_path"
)

// Fields names the metadata keys read from each match.
type Fields struct {
	Text  string
	Title string
	Path  string
}

// Config is the resolved vector index configuration.
type Config struct {
	// Backend selects the index service. Env: VECTOR_BACKEND (default pinecone).
	Backend Backend

	// Fields names the metadata keys. Env: RAG_TEXT_FIELD, RAG_TITLE_FIELD, RAG_PATH_FIELD.
	Fields Fields

	Pinecone PineconeConfig
	Qdrant   QdrantConfig
	Milvus   MilvusConfig
}

// PineconeConfig holds Pinecone connection parameters.
type PineconeConfig struct {
	// APIKey authenticates against the Pinecone control plane. Env: PINECONE_API_KEY.
	APIKey string

	// IndexName is the index to query. Env: PINECONE_INDEX_NAME.
	IndexName string

	// Namespace optionally scopes queries. Env: PINECONE_NAMESPACE.
	Namespace string
}

// QdrantConfig holds Qdrant connection parameters.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Env: QDRANT_HOST (default localhost).
	Host string

	// Port is the Qdrant gRPC port. Env: QDRANT_PORT (default 6334).
	Port int

	// Collection is the collection to query. Env: QDRANT_COLLECTION.
	Collection string

	// APIKey is optional for local clusters. Env: QDRANT_API_KEY.
	APIKey string

	// UseTLS enables TLS for the gRPC connection. Env: QDRANT_TLS.
	UseTLS bool
}

// MilvusConfig holds Milvus connection parameters.
type MilvusConfig struct {
	// Address is host:port of the Milvus proxy. Env: MILVUS_ADDRESS (default localhost:19530).
	Address string

	// Collection is the collection to search. Env: MILVUS_COLLECTION.
	Collection string

	// VectorField is the float vector field name. Env: MILVUS_VECTOR_FIELD (default vector).
	VectorField string

	// Username and Password enable authentication when both are set.
	// Env: MILVUS_USERNAME, MILVUS_PASSWORD.
	Username string
	Password string

	// APIKey authenticates against Zilliz Cloud. Env: MILVUS_API_KEY.
	APIKey string

	// SearchEF is the HNSW ef parameter. Env: MILVUS_SEARCH_EF (default 128).
	SearchEF int
}

// ConfigFromEnv resolves the vector index configuration from environment
// variables. Call Validate before using the result.
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(strings.ToLower(getEnvOrDefault("VECTOR_BACKEND", string(BackendPinecone)))),
		Fields: Fields{
			Text:  getEnvOrDefault("RAG_TEXT_FIELD", defaultTextField),
			Title: getEnvOrDefault("RAG_TITLE_FIELD", defaultTitleField),
			Path:  getEnvOrDefault("RAG_PATH_FIELD", defaultPathField),
		},
		Pinecone: PineconeConfig{
			APIKey:    os.Getenv("PINECONE_API_KEY"),
			IndexName: os.Getenv("PINECONE_INDEX_NAME"),
			Namespace: os.Getenv("PINECONE_NAMESPACE"),
		},
		Qdrant: QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: os.Getenv("QDRANT_COLLECTION"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     getEnvBool("QDRANT_TLS"),
		},
		Milvus: MilvusConfig{
			Address:     getEnvOrDefault("MILVUS_ADDRESS", "localhost:19530"),
			Collection:  os.Getenv("MILVUS_COLLECTION"),
			VectorField: getEnvOrDefault("MILVUS_VECTOR_FIELD", "vector"),
			Username:    os.Getenv("MILVUS_USERNAME"),
			Password:    os.Getenv("MILVUS_PASSWORD"),
			APIKey:      os.Getenv("MILVUS_API_KEY"),
			SearchEF:    getEnvInt("MILVUS_SEARCH_EF", 128),
		},
	}
}

// Validate reports missing identifiers or credentials for the selected
// backend. Every error wraps rag.ErrConfig.
func (c *Config) Validate() error {
	var missing []string
	switch c.Backend {
	case BackendPinecone:
		if c.Pinecone.APIKey == "" {
			missing = append(missing, "PINECONE_API_KEY")
		}
		if c.Pinecone.IndexName == "" {
			missing = append(missing, "PINECONE_INDEX_NAME")
		}
	case BackendQdrant:
		if c.Qdrant.Collection == "" {
			missing = append(missing, "QDRANT_COLLECTION")
		}
	case BackendMilvus:
		if c.Milvus.Collection == "" {
			missing = append(missing, "MILVUS_COLLECTION")
		}
		if c.Milvus.Address == "" {
			missing = append(missing, "MILVUS_ADDRESS")
		}
	default:
		return fmt.Errorf("vectorindex: unknown backend %q (want pinecone, qdrant or milvus): %w", c.Backend, rag.ErrConfig)
	}
	if len(missing) > 0 {
		return fmt.Errorf("vectorindex: %s backend requires %s: %w", c.Backend, strings.Join(missing, ", "), rag.ErrConfig)
	}
	if c.Fields.Text == "" {
		return fmt.Errorf("vectorindex: text metadata field must not be empty: %w", rag.ErrConfig)
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
