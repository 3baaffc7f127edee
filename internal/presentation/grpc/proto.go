package grpc

// proto.go defines the gRPC service for microfinance.loan.v1.LoanService.
// Messages are the application DTOs carried by the JSON codec registered in
// json_codec.go. It stands in for buf-generated code.

import (
	"context"

	grpclib "google.golang.org/grpc"

	"github.com/bibbank/microfinance/internal/application/dto"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "microfinance.loan.v1.LoanService"

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// LoanServiceServer is the server API for LoanService.
type LoanServiceServer interface {
	// Product catalog
	CreateProduct(context.Context, *dto.CreateProductRequest) (*dto.ProductResponse, error)
	ReviseProduct(context.Context, *dto.ReviseProductRequest) (*dto.ProductResponse, error)
	GetProduct(context.Context, *dto.GetProductRequest) (*dto.ProductResponse, error)
	PreviewSchedule(context.Context, *dto.PreviewScheduleRequest) (*dto.ScheduleResponse, error)

	// Origination
	CreateLoan(context.Context, *dto.CreateLoanRequest) (*dto.LoanResponse, error)
	UpdateDraft(context.Context, *dto.UpdateDraftRequest) (*dto.LoanResponse, error)
	SubmitLoan(context.Context, *dto.LoanActionRequest) (*dto.LoanResponse, error)
	ApproveLoan(context.Context, *dto.ApproveLoanRequest) (*dto.LoanResponse, error)
	RejectLoan(context.Context, *dto.RejectLoanRequest) (*dto.LoanResponse, error)

	// Disbursement
	PlanTranches(context.Context, *dto.PlanTranchesRequest) (*dto.LoanResponse, error)
	RecordMilestone(context.Context, *dto.RecordMilestoneRequest) (*dto.LoanResponse, error)
	DisburseLoan(context.Context, *dto.DisburseLoanRequest) (*dto.LoanResponse, error)
	DisburseTranche(context.Context, *dto.DisburseTrancheRequest) (*dto.LoanResponse, error)

	// Servicing
	MakePayment(context.Context, *dto.MakePaymentRequest) (*dto.RepaymentResponse, error)
	ReverseRepayment(context.Context, *dto.ReverseRepaymentRequest) (*dto.RepaymentResponse, error)
	AssessOverdue(context.Context, *dto.AssessOverdueRequest) (*dto.LoanResponse, error)
	WaiveInstallment(context.Context, *dto.WaiveInstallmentRequest) (*dto.LoanResponse, error)
	MarkDefaulted(context.Context, *dto.MarkDefaultedRequest) (*dto.LoanResponse, error)
	CloseLoan(context.Context, *dto.LoanActionRequest) (*dto.LoanResponse, error)

	// Workouts
	SubmitRestructure(context.Context, *dto.SubmitRestructureRequest) (*dto.WorkflowResponse, error)
	ApproveRestructure(context.Context, *dto.DecisionRequest) (*dto.WorkflowResponse, error)
	RejectRestructure(context.Context, *dto.DecisionRequest) (*dto.WorkflowResponse, error)
	ActivateRestructure(context.Context, *dto.ActivateRestructureRequest) (*dto.LoanResponse, error)
	SubmitWriteOff(context.Context, *dto.SubmitWriteOffRequest) (*dto.WorkflowResponse, error)
	ApproveWriteOff(context.Context, *dto.DecisionRequest) (*dto.WorkflowResponse, error)
	RejectWriteOff(context.Context, *dto.DecisionRequest) (*dto.WorkflowResponse, error)
	ProcessWriteOff(context.Context, *dto.ProcessWriteOffRequest) (*dto.WorkflowResponse, error)
	RecordRecovery(context.Context, *dto.RecoveryRequest) (*dto.RepaymentResponse, error)

	// Queries
	GetLoan(context.Context, *dto.GetLoanRequest) (*dto.LoanResponse, error)
	ListLoans(context.Context, *dto.ListLoansRequest) (*dto.ListLoansResponse, error)
}

// RegisterLoanServiceServer registers srv with the gRPC server.
func RegisterLoanServiceServer(s grpclib.ServiceRegistrar, srv LoanServiceServer) {
	s.RegisterService(&loanServiceDesc, srv)
}

var loanServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LoanServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		unary("CreateProduct", LoanServiceServer.CreateProduct),
		unary("ReviseProduct", LoanServiceServer.ReviseProduct),
		unary("GetProduct", LoanServiceServer.GetProduct),
		unary("PreviewSchedule", LoanServiceServer.PreviewSchedule),
		unary("CreateLoan", LoanServiceServer.CreateLoan),
		unary("UpdateDraft", LoanServiceServer.UpdateDraft),
		unary("SubmitLoan", LoanServiceServer.SubmitLoan),
		unary("ApproveLoan", LoanServiceServer.ApproveLoan),
		unary("RejectLoan", LoanServiceServer.RejectLoan),
		unary("PlanTranches", LoanServiceServer.PlanTranches),
		unary("RecordMilestone", LoanServiceServer.RecordMilestone),
		unary("DisburseLoan", LoanServiceServer.DisburseLoan),
		unary("DisburseTranche", LoanServiceServer.DisburseTranche),
		unary("MakePayment", LoanServiceServer.MakePayment),
		unary("ReverseRepayment", LoanServiceServer.ReverseRepayment),
		unary("AssessOverdue", LoanServiceServer.AssessOverdue),
		unary("WaiveInstallment", LoanServiceServer.WaiveInstallment),
		unary("MarkDefaulted", LoanServiceServer.MarkDefaulted),
		unary("CloseLoan", LoanServiceServer.CloseLoan),
		unary("SubmitRestructure", LoanServiceServer.SubmitRestructure),
		unary("ApproveRestructure", LoanServiceServer.ApproveRestructure),
		unary("RejectRestructure", LoanServiceServer.RejectRestructure),
		unary("ActivateRestructure", LoanServiceServer.ActivateRestructure),
		unary("SubmitWriteOff", LoanServiceServer.SubmitWriteOff),
		unary("ApproveWriteOff", LoanServiceServer.ApproveWriteOff),
		unary("RejectWriteOff", LoanServiceServer.RejectWriteOff),
		unary("ProcessWriteOff", LoanServiceServer.ProcessWriteOff),
		unary("RecordRecovery", LoanServiceServer.RecordRecovery),
		unary("GetLoan", LoanServiceServer.GetLoan),
		unary("ListLoans", LoanServiceServer.ListLoans),
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "microfinance/loan/v1/loan.proto",
}

// unary builds the method descriptor generated code would emit for one RPC.
func unary[Req, Resp any](method string, call func(LoanServiceServer, context.Context, *Req) (*Resp, error)) grpclib.MethodDesc {
	return grpclib.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LoanServiceServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpclib.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
