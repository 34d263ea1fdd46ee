package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"barberbook/internal/api/bookingv1"
	"barberbook/internal/config"
	"barberbook/internal/logging"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCServer struct {
	cfg      *config.APIConfig
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

// NewGRPCServer listens on the configured port. Pass a nil listener to do so,
// or an existing one (tests use bufconn).
func NewGRPCServer(cfg *config.APIConfig, svc *Services, limiter *RateLimiter, lis net.Listener, logger *zerolog.Logger) (*GRPCServer, error) {
	if lis == nil {
		addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		var err error
		lis, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
		}
	}

	auth := NewAuthInterceptor(cfg, limiter)
	unary := ChainUnaryInterceptors(
		LoggingUnaryInterceptor(logger),
		auth.Unary(),
	)

	serverOpts := []grpc.ServerOption{
		grpc.UnaryInterceptor(unary),
		grpc.ChainStreamInterceptor(LoggingStreamInterceptor(logger), auth.Stream()),
	}
	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := serverTLS(cfg.GRPC.TLS)
		if err != nil {
			lis.Close()
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(serverOpts...)
	serverLogger := logging.Component(logger, "grpc")

	bookingv1.RegisterBookingServiceServer(grpcServer, NewBookingGRPC(svc, serverLogger))

	hs := health.NewServer()
	hs.SetServingStatus(bookingv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	return &GRPCServer{
		cfg:      cfg,
		server:   grpcServer,
		health:   hs,
		listener: lis,
		log:      serverLogger,
	}, nil
}

// serverTLS loads the listener keypair and, when client certificates are
// required, the CA pool used to verify them.
func serverTLS(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("api.grpc.tls: cert_file and key_file are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("api.grpc.tls keypair: %w", err)
	}

	out := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if !cfg.RequireClientCert {
		return out, nil
	}

	pool, err := clientCAPool(cfg.ClientCAFile)
	if err != nil {
		return nil, err
	}
	out.ClientAuth = tls.RequireAndVerifyClientCert
	out.ClientCAs = pool
	return out, nil
}

func clientCAPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, fmt.Errorf("api.grpc.tls: require_client_cert needs client_ca_file")
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("api.grpc.tls client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("api.grpc.tls client ca %s: no certificates found", path)
	}
	return pool, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

// Shutdown marks the service not serving and drains in-flight calls and
// subscription streams. Whatever is still open when ctx expires is cut off.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.server.GracefulStop()
	}()

	deadline := time.NewTimer(10 * time.Second)
	defer deadline.Stop()
	select {
	case <-drained:
		return
	case <-ctx.Done():
	case <-deadline.C:
	}
	s.log.Warn().Msg("gRPC drain incomplete, closing open streams")
	s.server.Stop()
}
