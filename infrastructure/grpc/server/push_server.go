package server

import (
	"chat-sync/auth"
	"chat-sync/contract"
	"chat-sync/errors"
	"chat-sync/infrastructure/grpc/pushpb"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// OutcomeHeader carries the routing outcome back to the caller.
const OutcomeHeader = "x-route-outcome"

// PushServer is the inbound push channel: each delivered struct is flattened
// into a string payload and handed to the router.
type PushServer struct {
	pushpb.UnimplementedPushServiceServer
	log    *slog.Logger
	router contract.PushRouter
}

func NewPushServer(log *slog.Logger, router contract.PushRouter) *PushServer {
	return &PushServer{log: log, router: router}
}

// Deliver acknowledges every well-formed delivery, routed or dropped, the way a
// push provider does. Only an empty payload is refused.
func (s *PushServer) Deliver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if len(req.GetFields()) == 0 {
		return nil, errors.MapToGRPCError(errors.ErrMalformedPayload)
	}
	outcome := s.router.Route(ctx, Flatten(req))
	caller, _ := auth.UserIDFrom(ctx)
	s.log.Debug("Push delivered", "outcome", outcome.String(), "caller", caller)
	if err := grpc.SetHeader(ctx, metadata.Pairs(OutcomeHeader, outcome.String())); err != nil {
		s.log.Debug("Outcome header not sent", "error", err)
	}
	return &emptypb.Empty{}, nil
}

// Flatten turns a struct into the string map of a push data payload. Nested
// values are kept as their JSON text.
func Flatten(s *structpb.Struct) map[string]string {
	payload := make(map[string]string, len(s.GetFields()))
	for key, value := range s.GetFields() {
		switch kind := value.GetKind().(type) {
		case *structpb.Value_StringValue:
			payload[key] = kind.StringValue
		case *structpb.Value_NumberValue:
			payload[key] = strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
		case *structpb.Value_BoolValue:
			payload[key] = strconv.FormatBool(kind.BoolValue)
		case *structpb.Value_NullValue:
			payload[key] = ""
		default:
			raw, err := json.Marshal(value.AsInterface())
			if err != nil {
				continue
			}
			payload[key] = string(raw)
		}
	}
	return payload
}
