// Package transport is an optional, demo-only reference service showing how
// per-frame statistics can travel over a network without depending on the
// rendering pipeline's own RPC layer (spec.md §1 explicitly keeps "how
// statistics are gathered... transport, threading, wire format" out of the
// core). It is never imported by package equalizer.
//
// grpc-go's usual stub generation runs through protoc; without protoc
// available here, this package instead registers a hand-rolled gob
// encoding.Codec under a content-subtype and builds the
// grpc.ServiceDesc/RegisterService wiring by hand — the same two extension
// points protoc-gen-go-grpc itself would target, just filled in directly.
// The listen/serve/dial shape is grounded on the teacher's
// internal/grpcserver/{server,dial}.go.
package transport

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/vlequalizer/loadeq/internal/logx"
	"github.com/vlequalizer/loadeq/internal/render"
)

const codecName = "gob"

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// gobCodec lets grpc.CallContentSubtype(codecName) carry arbitrary Go
// structs without a .proto-generated marshaller.
type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }

// Stat mirrors render.Statistic for wire transport.
type Stat struct {
	Task      uint32
	Type      render.StatType
	StartTime int64
	EndTime   int64
}

// StatsBatch is one notifyLoadData call's worth of statistics for one
// named channel/frame.
type StatsBatch struct {
	ChannelName string
	FrameNumber uint32
	Stats       []Stat
}

// Ack is the empty response.
type Ack struct{}

// Sink is invoked for every received batch — typically an Equalizer's
// NotifyLoadData, after the caller resolves ChannelName to the
// render.Channel it already holds.
type Sink func(channelName string, frameNumber uint32, stats []render.Statistic)

// Server implements the StatsIngest service.
type Server struct {
	log  *logx.Logger
	sink Sink
}

// NewServer builds a Server that forwards every received batch to sink.
func NewServer(log *logx.Logger, sink Sink) *Server {
	return &Server{log: log, sink: sink}
}

func (s *Server) push(_ context.Context, batch *StatsBatch) (*Ack, error) {
	stats := make([]render.Statistic, len(batch.Stats))
	for i, st := range batch.Stats {
		stats[i] = render.Statistic{Task: st.Task, Type: st.Type, StartTime: st.StartTime, EndTime: st.EndTime}
	}
	s.sink(batch.ChannelName, batch.FrameNumber, stats)
	return &Ack{}, nil
}

func pushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsBatch)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/loadeq.StatsIngest/Push"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).push(ctx, req.(*StatsBatch))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "loadeq.StatsIngest",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/statsingest",
}

// Listen starts a gRPC server exposing srv on addr. Grounded on the
// teacher's grpcserver.Start: listen, construct *grpc.Server, register,
// serve in a goroutine, log.
func Listen(addr string, srv *Server, log *logx.Logger) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	s := grpc.NewServer()
	s.RegisterService(&serviceDesc, srv)

	go func() {
		if err := s.Serve(lis); err != nil {
			log.Errorf("transport: serve: %v", err)
		}
	}()
	log.Infof("stats ingest listening on %s", addr)
	return s, lis, nil
}

// Stop mirrors grpcserver.Stop: idempotent shutdown of server and listener.
func Stop(s *grpc.Server, lis net.Listener, log *logx.Logger) {
	if s != nil {
		s.Stop()
	}
	if lis != nil {
		_ = lis.Close()
	}
	log.Warnf("transport stopped")
}

// Push dials addr and sends one batch using the gob content-subtype,
// grounded on the teacher's grpcserver.DialWithPiggyback dial-then-call
// shape.
func Push(ctx context.Context, addr string, batch *StatsBatch) error {
	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	ack := new(Ack)
	return conn.Invoke(ctx, "/loadeq.StatsIngest/Push", batch, ack)
}
