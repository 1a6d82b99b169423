package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/wyatt/creatorscout/internal/domain"
)

const (
	defaultVectorDimension = 1024

	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	// Follower range filters need both bounds; an open upper bound is
	// capped here.
	maxFollowersFallback = 10_000_000

	maxPrefetchLimit = 1000
)

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

type qdrantClients struct {
	conn          *grpc.ClientConn
	pointsClient  pb.PointsClient
	collectClient pb.CollectionsClient
}

// QdrantRepository searches the creator profile vector index. The gRPC
// connection is dialed lazily on first use: clients holds a single
// in-flight initialization shared by all concurrent callers, so the
// connection is constructed at most once per process.
type QdrantRepository struct {
	cfg     *QdrantConnectionConfig
	clients func() (*qdrantClients, error)

	mu   sync.Mutex
	conn *grpc.ClientConn
}

// NewQdrantRepository creates a new QdrantRepository. No connection is
// established here; the first search dials.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) *QdrantRepository {
	r := &QdrantRepository{cfg: cfg}
	r.clients = sync.OnceValues(r.dial)
	return r
}

func (r *QdrantRepository) dial() (*qdrantClients, error) {
	addr := fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port)

	// Build gRPC dial options
	var opts []grpc.DialOption

	// TLS is enabled if: APIKey is set OR UseTLS is explicitly true
	useTLS := r.cfg.UseTLS || r.cfg.APIKey != ""

	if useTLS {
		// Use TLS with system root certificates (TLS 1.3 minimum for Qdrant Cloud)
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		// Add API Key authentication if provided (using unary interceptor)
		if r.cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(r.cfg.APIKey)))
		}
	} else {
		// Local mode: no TLS, no authentication
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	return &qdrantClients{
		conn:          conn,
		pointsClient:  pb.NewPointsClient(conn),
		collectClient: pb.NewCollectionsClient(conn),
	}, nil
}

// Close closes the gRPC connection if one was ever dialed.
func (r *QdrantRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *QdrantRepository) vectorDimension() int {
	if r.cfg.VectorDimension > 0 {
		return r.cfg.VectorDimension
	}
	return defaultVectorDimension
}

// EnsureCollection creates the collection if it doesn't exist. The
// collection carries a named dense vector and a named sparse vector.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	clients, err := r.clients()
	if err != nil {
		return err
	}

	// Check if collection exists
	info, err := clients.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.cfg.Collection,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension()) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.cfg.Collection, size, r.vectorDimension())
			}
		}
		return nil // Collection exists
	}

	// Create collection
	_, err = clients.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.cfg.Collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_ParamsMap{
				ParamsMap: &pb.VectorParamsMap{
					Map: map[string]*pb.VectorParams{
						denseVectorName: {
							Size:     uint64(r.vectorDimension()),
							Distance: pb.Distance_Cosine,
						},
					},
				},
			},
		},
		SparseVectorsConfig: &pb.SparseVectorConfig{
			Map: map[string]*pb.SparseVectorParams{
				sparseVectorName: {},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}

// SearchParams describes one hybrid search call against the profile index.
// Alpha blends lexical and semantic relevance: 0 is lexical only, 1 is
// semantic only.
type SearchParams struct {
	Query        string
	Vector       []float32
	Alpha        float64
	Limit        int
	Platform     string
	MinFollowers *int64
	MaxFollowers *int64
}

// SearchProfiles runs one hybrid (dense + sparse, RRF-fused) search and
// returns hits with their indexed payload parsed. Prefetch limits are
// proportional to alpha so a lexical-leaning call pulls more sparse
// candidates and a semantic-leaning call more dense ones.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - params: query text, query vector, alpha, limit, and filters.
// Returns:
//   - []domain.SearchHit: hits with payload fields, stamped with the query and alpha.
//   - error: non-nil if the search fails.
func (r *QdrantRepository) SearchProfiles(ctx context.Context, params SearchParams) ([]domain.SearchHit, error) {
	clients, err := r.clients()
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	denseLimit, sparseLimit := prefetchLimits(params.Alpha, limit)
	filter := buildProfileFilter(params)

	prefetch := []*pb.PrefetchQuery{
		{
			Query: &pb.Query{
				Variant: &pb.Query_Nearest{
					Nearest: &pb.VectorInput{
						Variant: &pb.VectorInput_Dense{
							Dense: &pb.DenseVector{Data: params.Vector},
						},
					},
				},
			},
			Using:  optionalString(denseVectorName),
			Limit:  optionalUint64(uint64(denseLimit)),
			Filter: filter,
		},
		{
			Query: &pb.Query{
				Variant: &pb.Query_Nearest{
					Nearest: &pb.VectorInput{
						Variant: &pb.VectorInput_Sparse{
							Sparse: encodeSparseQuery(params.Query),
						},
					},
				},
			},
			Using:  optionalString(sparseVectorName),
			Limit:  optionalUint64(uint64(sparseLimit)),
			Filter: filter,
		},
	}

	resp, err := clients.pointsClient.Query(ctx, &pb.QueryPoints{
		CollectionName: r.cfg.Collection,
		Prefetch:       prefetch,
		Query: &pb.Query{
			Variant: &pb.Query_Fusion{Fusion: pb.Fusion_RRF},
		},
		Limit: optionalUint64(uint64(limit)),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		hit := parseProfilePayload(scored.GetPayload())
		hit.ObjectID = scored.GetId().GetUuid()
		hit.Score = float64(scored.GetScore())
		hit.Query = params.Query
		hit.Alpha = params.Alpha
		hits = append(hits, hit)
	}

	return hits, nil
}

// prefetchLimits interpolates per-branch prefetch sizes from alpha:
// alpha 0 pulls dense 1x / sparse 4x of the final limit, alpha 1 the
// reverse, clamped to maxPrefetchLimit.
func prefetchLimits(alpha float64, limit int) (dense int, sparse int) {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	denseMultiplier := 1.0 + 3.0*alpha
	sparseMultiplier := 4.0 - 3.0*alpha

	dense = int(float64(limit) * denseMultiplier)
	sparse = int(float64(limit) * sparseMultiplier)

	if dense > maxPrefetchLimit {
		dense = maxPrefetchLimit
	}
	if sparse > maxPrefetchLimit {
		sparse = maxPrefetchLimit
	}
	if dense < limit {
		dense = limit
	}
	if sparse < 1 {
		sparse = 1
	}
	return dense, sparse
}

// encodeSparseQuery tokenizes the query and hashes each distinct token
// to a sparse index, weighted by term frequency. Must match the encoding
// used by the profile indexer.
func encodeSparseQuery(query string) *pb.SparseVector {
	counts := make(map[uint32]float32)
	for _, token := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(token) < 2 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		counts[h.Sum32()]++
	}

	indices := make([]uint32, 0, len(counts))
	values := make([]float32, 0, len(counts))
	for idx, tf := range counts {
		indices = append(indices, idx)
		values = append(values, tf)
	}
	return &pb.SparseVector{Indices: indices, Values: values}
}

func buildProfileFilter(params SearchParams) *pb.Filter {
	var conditions []*pb.Condition

	if params.Platform != "" {
		conditions = append(conditions, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "platform",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: params.Platform},
					},
				},
			},
		})
	}

	if params.MinFollowers != nil || params.MaxFollowers != nil {
		var gte float64
		lte := float64(maxFollowersFallback)
		if params.MinFollowers != nil {
			gte = float64(*params.MinFollowers)
		}
		if params.MaxFollowers != nil {
			lte = float64(*params.MaxFollowers)
		}
		conditions = append(conditions, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "followers",
					Range: &pb.Range{
						Gte: &gte,
						Lte: &lte,
					},
				},
			},
		})
	}

	if len(conditions) == 0 {
		return nil
	}

	return &pb.Filter{
		Must: conditions,
	}
}

func parseProfilePayload(payload map[string]*pb.Value) domain.SearchHit {
	var hit domain.SearchHit
	if payload == nil {
		return hit
	}

	if v, ok := payload["platform"]; ok {
		hit.Platform = v.GetStringValue()
	}
	if v, ok := payload["username"]; ok {
		hit.Username = v.GetStringValue()
	}
	if v, ok := payload["profile_url"]; ok {
		hit.ProfileURL = v.GetStringValue()
	}
	if v, ok := payload["display_name"]; ok {
		hit.DisplayName = v.GetStringValue()
	}
	if v, ok := payload["followers"]; ok {
		hit.Followers = v.GetIntegerValue()
	}
	if v, ok := payload["bio"]; ok {
		hit.Bio = v.GetStringValue()
	}
	if v, ok := payload["recency_score"]; ok {
		hit.RecencyScore = v.GetDoubleValue()
	}
	if v, ok := payload["engagement_score"]; ok {
		hit.EngagementScore = v.GetDoubleValue()
	}

	return hit
}

func optionalString(s string) *string {
	return &s
}
