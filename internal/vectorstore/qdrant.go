package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var qdrantTracer = otel.Tracer("vectord.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: localhost.
	Host string
	// Port is the gRPC port (6334), not the REST port.
	Port   int
	APIKey string
	UseTLS bool
	// MaxRetries bounds retries of transient failures. Default: 3.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled per retry. Default: 1s.
	RetryBackoff time.Duration
	// MaxMessageSize is the gRPC message limit in bytes. Default: 50MB.
	MaxMessageSize int
	// CircuitBreakerThreshold is consecutive failures before the circuit opens. Default: 5.
	CircuitBreakerThreshold int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// QdrantStore implements Adapter with Qdrant collections, one per index.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	retry  *retrier
	logger *zap.Logger
}

// NewQdrantStore connects to Qdrant and checks its health.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
		retry:  newRetrier(config.MaxRetries, config.RetryBackoff, config.CircuitBreakerThreshold),
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Bool("tls", config.UseTLS))
	return store, nil
}

// Ping performs a Qdrant health check.
func (s *QdrantStore) Ping(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Ping")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *QdrantStore) exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.retry.do(ctx, "collection_exists", func() error {
		ok, err := s.client.CollectionExists(ctx, name)
		exists = ok
		return err
	})
	return exists, err
}

// CreateIndex creates a cosine-distance collection.
func (s *QdrantStore) CreateIndex(ctx context.Context, name string, dimension int) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.CreateIndex")
	defer span.End()
	span.SetAttributes(attribute.String("index", name), attribute.Int("dimension", dimension))

	if err := ValidateIndexName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	exists, err := s.exists(ctx, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking index %s: %w", name, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrIndexExists, name)
	}

	err = s.retry.do(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating index %s: %w", name, err)
	}
	span.SetStatus(codes.Ok, "created")
	return nil
}

// pointID maps a vectorId to a stable Qdrant UUID. The vectorId itself
// is kept in the payload.
func pointID(vectorID string) *qdrant.PointId {
	if _, err := uuid.Parse(vectorID); err == nil {
		return qdrant.NewIDUUID(vectorID)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(vectorID)).String())
}

func toPayload(m Metadata) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, 8)
	for k, v := range m.Flatten() {
		switch k {
		case KeyChunkIndex, KeyTotalChunks, KeyFileSize:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: n}}
				continue
			}
		}
		payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) Metadata {
	flat := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			flat[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			flat[k] = strconv.FormatInt(val.IntegerValue, 10)
		case *qdrant.Value_DoubleValue:
			flat[k] = strconv.FormatFloat(val.DoubleValue, 'f', -1, 64)
		case *qdrant.Value_BoolValue:
			flat[k] = strconv.FormatBool(val.BoolValue)
		}
	}
	return ParseMetadata(flat)
}

// Upsert writes points in one request.
func (s *QdrantStore) Upsert(ctx context.Context, name string, vectors [][]float32, metadata []Metadata) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("index", name), attribute.Int("count", len(vectors)))

	if err := validateUpsert(name, vectors, metadata); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(vectors))
	for i := range vectors {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(metadata[i].ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: toPayload(metadata[i]),
		}
	}

	start := time.Now()
	err := s.retry.do(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	observe("qdrant", "upsert", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to %s: %w", name, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query searches the collection by vector.
func (s *QdrantStore) Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	span.SetAttributes(attribute.String("index", name), attribute.Int("top_k", topK))

	if err := ValidateIndexName(name); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", topK)
	}

	var points []*qdrant.ScoredPoint
	start := time.Now()
	err := s.retry.do(ctx, "query", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: name,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(topK)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		points = res
		return err
	})
	observe("qdrant", "query", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}

	matches := make([]Match, len(points))
	for i, p := range points {
		score := p.GetScore()
		meta := fromPayload(p.GetPayload())
		matches[i] = Match{ID: meta.ID, Score: &score, Metadata: meta}
	}
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Delete removes points whose payload id is in ids.
func (s *QdrantStore) Delete(ctx context.Context, name string, ids []string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("index", name), attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}
	if err := ValidateIndexName(name); err != nil {
		return err
	}

	start := time.Now()
	err := s.retry.do(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatchKeywords(KeyID, ids...)},
			}),
		})
		return err
	})
	observe("qdrant", "delete", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", name, err)
	}
	return nil
}

// DeleteIndex drops the collection if it exists.
func (s *QdrantStore) DeleteIndex(ctx context.Context, name string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteIndex")
	defer span.End()
	span.SetAttributes(attribute.String("index", name))

	if err := ValidateIndexName(name); err != nil {
		return err
	}
	exists, err := s.exists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking index %s: %w", name, err)
	}
	if !exists {
		return nil
	}

	err = s.retry.do(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, name)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting index %s: %w", name, err)
	}
	return nil
}
