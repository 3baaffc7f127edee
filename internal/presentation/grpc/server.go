package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/bibbank/microfinance/pkg/auth"
	"github.com/bibbank/microfinance/pkg/tlsutil"
)

// ServerConfig configures the gRPC listener.
type ServerConfig struct {
	TLS        tlsutil.ServerConfig
	Reflection bool
}

// Server wraps a gRPC server with the loan handler registered.
type Server struct {
	gs     *grpc.Server
	health *health.Server
	logger *slog.Logger
}

var healthMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/Watch",
}

// MethodRoles lists the roles allowed to call each guarded RPC. Product and
// loan reads are open to any authenticated caller.
var MethodRoles = auth.MethodRoles{
	FullMethod("CreateProduct"): {auth.RoleCreditManager},
	FullMethod("ReviseProduct"): {auth.RoleCreditManager},

	FullMethod("CreateLoan"):  {auth.RoleLoanOfficer},
	FullMethod("UpdateDraft"): {auth.RoleLoanOfficer},
	FullMethod("SubmitLoan"):  {auth.RoleLoanOfficer},
	FullMethod("ApproveLoan"): {auth.RoleCreditManager},
	FullMethod("RejectLoan"):  {auth.RoleCreditManager},

	FullMethod("PlanTranches"):    {auth.RoleLoanOfficer, auth.RoleCreditManager},
	FullMethod("RecordMilestone"): {auth.RoleLoanOfficer, auth.RoleIntegration},
	FullMethod("DisburseLoan"):    {auth.RoleLoanOfficer, auth.RoleCreditManager},
	FullMethod("DisburseTranche"): {auth.RoleLoanOfficer, auth.RoleCreditManager},

	FullMethod("MakePayment"):      {auth.RoleLoanOfficer, auth.RoleCollections, auth.RoleIntegration},
	FullMethod("ReverseRepayment"): {auth.RoleCreditManager, auth.RoleCollections},
	FullMethod("AssessOverdue"):    {auth.RoleCollections, auth.RoleIntegration},
	FullMethod("WaiveInstallment"): {auth.RoleCreditManager},
	FullMethod("MarkDefaulted"):    {auth.RoleCreditManager, auth.RoleCollections},
	FullMethod("CloseLoan"):        {auth.RoleLoanOfficer, auth.RoleCreditManager},

	FullMethod("SubmitRestructure"):   {auth.RoleLoanOfficer, auth.RoleCollections},
	FullMethod("ApproveRestructure"):  {auth.RoleCreditManager},
	FullMethod("RejectRestructure"):   {auth.RoleCreditManager},
	FullMethod("ActivateRestructure"): {auth.RoleCreditManager},
	FullMethod("SubmitWriteOff"):      {auth.RoleLoanOfficer, auth.RoleCollections},
	FullMethod("ApproveWriteOff"):     {auth.RoleCreditManager},
	FullMethod("RejectWriteOff"):      {auth.RoleCreditManager},
	FullMethod("ProcessWriteOff"):     {auth.RoleCreditManager},
	FullMethod("RecordRecovery"):      {auth.RoleCollections, auth.RoleIntegration},
}

// NewServer creates and configures the gRPC server.
func NewServer(cfg ServerConfig, handler LoanServiceServer, jwtService *auth.JWTService, logger *slog.Logger) (*Server, error) {
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			tracingInterceptor(),
			loggingInterceptor(logger),
			auth.UnaryAuthInterceptor(jwtService, healthMethods),
			auth.UnaryRoleInterceptor(MethodRoles),
		),
	}

	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		creds, err := tlsutil.ServerCredentials(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("grpc tls: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
		logger.Info("gRPC TLS enabled", "cert", cfg.TLS.CertFile, "mtls", cfg.TLS.ClientCAFile != "")
	} else {
		logger.Info("gRPC TLS not configured, running without TLS")
	}

	gs := grpc.NewServer(serverOpts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if cfg.Reflection {
		reflection.Register(gs)
	}

	RegisterLoanServiceServer(gs, handler)

	return &Server{gs: gs, health: healthSrv, logger: logger}, nil
}

// Serve starts the gRPC server on the specified address.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.logger.Info("gRPC server listening", "addr", addr)
	return s.gs.Serve(lis)
}

// GracefulStop marks the service as not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.logger.Info("gRPC server shutting down")
	s.health.Shutdown()
	s.gs.GracefulStop()
}

func tracingInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer("github.com/bibbank/microfinance/grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		resp, err := handler(ctx, req)
		if err != nil {
			span.SetStatus(otelcodes.Error, status.Code(err).String())
		}
		return resp, err
	}
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.DebugContext(ctx, "grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}
