// Package grpchealth serves grpc.health.v1 for orchestrators that probe over
// gRPC. The status follows the storage backend's Ping.
package grpchealth

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	srv    *grpc.Server
	hsrv   *health.Server
	pinger Pinger
	every  time.Duration
	log    *logrus.Logger
	stop   chan struct{}
}

func New(pinger Pinger, every time.Duration, log *logrus.Logger) *Server {
	srv := grpc.NewServer()
	hsrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, hsrv)
	reflection.Register(srv)

	return &Server{srv: srv, hsrv: hsrv, pinger: pinger, every: every, log: log, stop: make(chan struct{})}
}

// Serve checks health once, then keeps checking in the background while
// serving lis. It returns when the server stops.
func (s *Server) Serve(lis net.Listener) error {
	s.check()
	go s.watch()
	return s.srv.Serve(lis)
}

func (s *Server) watch() {
	t := time.NewTicker(s.every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.check()
		}
	}
}

func (s *Server) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.pinger.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("storage ping failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.hsrv.SetServingStatus("", status)
}

// Stop marks the service as not serving and drains open RPCs.
func (s *Server) Stop() {
	close(s.stop)
	s.hsrv.Shutdown()
	s.srv.GracefulStop()
}
