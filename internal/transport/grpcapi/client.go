package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/OneInX/Manifest-InX/internal/gate"
	"github.com/OneInX/Manifest-InX/internal/pipeline"
)

// #region types
// Insight is a decoded Classify response.
type Insight struct {
	TemplateID      string
	OutputText      string
	SDT             gate.Result
	ManifestVersion string
	HashOK          bool
}

// #endregion types

// #region client-struct
// Client wraps the gRPC connection to an Insight server.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// #endregion client-struct

// #region constructor
// NewClient connects to the Insight server at addr. Extra dial options are
// appended after insecure transport credentials.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion close

// #region classify
// Classify sends one request to the Insight service.
func (c *Client) Classify(ctx context.Context, req pipeline.Request) (Insight, error) {
	fields := map[string]any{"text": req.Text}
	if req.Lang != "" {
		fields["lang"] = req.Lang
	}
	if req.Source != "" {
		fields["source"] = req.Source
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return Insight{}, fmt.Errorf("classify request: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, classifyMethod, in, out); err != nil {
		return Insight{}, fmt.Errorf("classify rpc: %w", err)
	}
	return decodeInsight(out)
}

// #endregion classify

// #region health
// Health returns the serving status of the Insight service.
func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health rpc: %w", err)
	}
	return resp.GetStatus(), nil
}

// #endregion health

func decodeInsight(out *structpb.Struct) (Insight, error) {
	m := out.AsMap()
	ins := Insight{}
	ins.TemplateID, _ = m["template_id"].(string)
	ins.OutputText, _ = m["output_text"].(string)
	if ins.TemplateID == "" {
		return Insight{}, fmt.Errorf("classify response: missing template_id")
	}

	sdt, _ := m["sdt"].(map[string]any)
	ins.SDT.Pass, _ = sdt["pass"].(bool)
	ins.SDT.Violations = []string{}
	if vs, ok := sdt["violations"].([]any); ok {
		for _, v := range vs {
			if s, ok := v.(string); ok {
				ins.SDT.Violations = append(ins.SDT.Violations, s)
			}
		}
	}

	manifest, _ := m["manifest"].(map[string]any)
	ins.ManifestVersion, _ = manifest["version"].(string)
	ins.HashOK, _ = manifest["hash_ok"].(bool)
	return ins, nil
}
