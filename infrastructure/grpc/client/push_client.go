package client

import (
	"chat-sync/auth"
	"chat-sync/infrastructure/grpc/pushpb"
	"context"
	"fmt"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const outcomeHeader = "x-route-outcome"

// PushClient delivers push payloads to a running daemon.
type PushClient struct {
	conn   *grpc.ClientConn
	client pushpb.PushServiceClient
	token  string
}

// NewPushClient connects to target. token is sent as bearer when not empty.
func NewPushClient(target, token string, opts ...grpc.DialOption) (*PushClient, error) {
	options := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	return &PushClient{conn: conn, client: pushpb.NewPushServiceClient(conn), token: token}, nil
}

// Deliver sends payload and returns the routing outcome reported by the daemon.
func (c *PushClient) Deliver(ctx context.Context, payload map[string]string) (string, error) {
	fields := lo.MapValues(payload, func(value string, _ string) any { return value })
	request, err := structpb.NewStruct(fields)
	if err != nil {
		return "", err
	}
	if c.token != "" {
		ctx = auth.WithBearer(ctx, c.token)
	}

	var header metadata.MD
	if _, err := c.client.Deliver(ctx, request, grpc.Header(&header)); err != nil {
		return "", err
	}
	if values := header.Get(outcomeHeader); len(values) > 0 {
		return values[0], nil
	}
	return "", nil
}

func (c *PushClient) Close() error {
	return c.conn.Close()
}
