// Package battleserver exposes the battle service over gRPC. Messages are
// google.protobuf.Struct values holding the same JSON documents the HTTP API
// accepts and returns.
package battleserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/shinobi/internal/battle"
	"github.com/cory-johannsen/shinobi/internal/game/engagement"
	"github.com/cory-johannsen/shinobi/internal/storage/postgres"
)

// Server implements BattleServiceServer on top of a battle.Service.
type Server struct {
	svc    *battle.Service
	logger *zap.Logger
}

// NewServer creates a Server.
//
// Precondition: svc must be non-nil. A nil logger disables logging.
// Postcondition: Returns a non-nil Server.
func NewServer(svc *battle.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, logger: logger}
}

// Simulate decodes battle.SimulateParams and returns the combat.Result.
func (s *Server) Simulate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var params battle.SimulateParams
	if err := decode(in, &params); err != nil {
		return nil, err
	}
	req, err := params.Request()
	if err != nil {
		return nil, s.toStatus("Simulate", err)
	}
	res, err := s.svc.Simulate(ctx, req)
	if err != nil {
		return nil, s.toStatus("Simulate", err)
	}
	return encode(res)
}

// Engage decodes battle.EngageParams and returns the battle.Outcome.
func (s *Server) Engage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var params battle.EngageParams
	if err := decode(in, &params); err != nil {
		return nil, err
	}
	req, err := params.Request()
	if err != nil {
		return nil, s.toStatus("Engage", err)
	}
	out, err := s.svc.Engage(ctx, req)
	if err != nil {
		return nil, s.toStatus("Engage", err)
	}
	return encode(out)
}

// GetEngagement expects {"id": "<uuid>"} and returns the engagement record.
func (s *Server) GetEngagement(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw := in.GetFields()["id"].GetStringValue()
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid engagement id %q", raw)
	}
	rec, err := s.svc.Engagement(ctx, id)
	if err != nil {
		return nil, s.toStatus("GetEngagement", err)
	}
	return encode(rec)
}

// History decodes battle.HistoryParams and returns {"engagements": [...]}.
func (s *Server) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var params battle.HistoryParams
	if err := decode(in, &params); err != nil {
		return nil, err
	}
	recs, err := s.svc.History(ctx, params.ProfileID, params.Limit)
	if err != nil {
		return nil, s.toStatus("History", err)
	}
	return encode(map[string]any{"engagements": recs})
}

// toStatus maps service errors onto gRPC status codes. Unexpected errors are
// logged and returned as Internal without their detail.
func (s *Server) toStatus(method string, err error) error {
	switch {
	case errors.Is(err, battle.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, postgres.ErrProfileNotFound), errors.Is(err, postgres.ErrEngagementNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engagement.ErrStale):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error("battle rpc failed", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

// decode round-trips in through JSON into dst.
func decode(in *structpb.Struct, dst any) error {
	data, err := in.MarshalJSON()
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "encoding request: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	return nil
}

// encode converts v to a Struct via its JSON form.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}
