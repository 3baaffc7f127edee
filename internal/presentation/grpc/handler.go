package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/application/usecase"
	"github.com/bibbank/microfinance/pkg/auth"
)

// UseCases groups the application services exposed over gRPC.
type UseCases struct {
	Catalog     *usecase.ProductCatalogUseCase
	Originate   *usecase.OriginateLoanUseCase
	Disburse    *usecase.DisburseLoanUseCase
	Payment     *usecase.MakePaymentUseCase
	Servicing   *usecase.ServiceLoanUseCase
	Restructure *usecase.RestructureLoanUseCase
	WriteOff    *usecase.WriteOffLoanUseCase
	GetLoan     *usecase.GetLoanUseCase
}

// LoanHandler implements LoanServiceServer. The tenant and acting user of
// every call come from the bearer token, never from the request body.
type LoanHandler struct {
	uc     UseCases
	logger *slog.Logger
}

var _ LoanServiceServer = (*LoanHandler)(nil)

// NewLoanHandler creates a new handler with all use-case dependencies.
func NewLoanHandler(uc UseCases, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{uc: uc, logger: logger}
}

// scope binds the request to the caller's tenant. An empty tenant is filled
// in from the token; a different one is refused.
func scope(ctx context.Context, tenantID *string) (*auth.Claims, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no claims in context")
	}
	switch *tenantID {
	case "":
		*tenantID = claims.TenantID
	case claims.TenantID:
	default:
		return nil, status.Error(codes.PermissionDenied, "tenant does not match token")
	}
	return claims, nil
}

func respond[Req, Resp any](ctx context.Context, h *LoanHandler, method string, fn func(context.Context, Req) (Resp, error), req Req) (*Resp, error) {
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, toStatus(ctx, h.logger, method, err)
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Product catalog
// ---------------------------------------------------------------------------

func (h *LoanHandler) CreateProduct(ctx context.Context, req *dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "CreateProduct", h.uc.Catalog.Create, *req)
}

func (h *LoanHandler) ReviseProduct(ctx context.Context, req *dto.ReviseProductRequest) (*dto.ProductResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "ReviseProduct", h.uc.Catalog.Revise, *req)
}

func (h *LoanHandler) GetProduct(ctx context.Context, req *dto.GetProductRequest) (*dto.ProductResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "GetProduct", h.uc.Catalog.Get, *req)
}

func (h *LoanHandler) PreviewSchedule(ctx context.Context, req *dto.PreviewScheduleRequest) (*dto.ScheduleResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "PreviewSchedule", h.uc.Catalog.PreviewSchedule, *req)
}

// ---------------------------------------------------------------------------
// Origination
// ---------------------------------------------------------------------------

func (h *LoanHandler) CreateLoan(ctx context.Context, req *dto.CreateLoanRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "CreateLoan", h.uc.Originate.Create, *req)
}

func (h *LoanHandler) UpdateDraft(ctx context.Context, req *dto.UpdateDraftRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "UpdateDraft", h.uc.Originate.UpdateDraft, *req)
}

func (h *LoanHandler) SubmitLoan(ctx context.Context, req *dto.LoanActionRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "SubmitLoan", h.uc.Originate.Submit, *req)
}

// ApproveLoan resolves the approver and limit from the token through the
// approval authority.
func (h *LoanHandler) ApproveLoan(ctx context.Context, req *dto.ApproveLoanRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "ApproveLoan", h.uc.Originate.Approve, *req)
}

func (h *LoanHandler) RejectLoan(ctx context.Context, req *dto.RejectLoanRequest) (*dto.LoanResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.RejectedBy = claims.UserID
	return respond(ctx, h, "RejectLoan", h.uc.Originate.Reject, *req)
}

// ---------------------------------------------------------------------------
// Disbursement
// ---------------------------------------------------------------------------

func (h *LoanHandler) PlanTranches(ctx context.Context, req *dto.PlanTranchesRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "PlanTranches", h.uc.Disburse.PlanTranches, *req)
}

func (h *LoanHandler) RecordMilestone(ctx context.Context, req *dto.RecordMilestoneRequest) (*dto.LoanResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.VerifiedBy = claims.UserID
	return respond(ctx, h, "RecordMilestone", h.uc.Disburse.RecordMilestone, *req)
}

func (h *LoanHandler) DisburseLoan(ctx context.Context, req *dto.DisburseLoanRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "DisburseLoan", h.uc.Disburse.Disburse, *req)
}

func (h *LoanHandler) DisburseTranche(ctx context.Context, req *dto.DisburseTrancheRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "DisburseTranche", h.uc.Disburse.DisburseTranche, *req)
}

// ---------------------------------------------------------------------------
// Servicing
// ---------------------------------------------------------------------------

func (h *LoanHandler) MakePayment(ctx context.Context, req *dto.MakePaymentRequest) (*dto.RepaymentResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "MakePayment", h.uc.Payment.Execute, *req)
}

func (h *LoanHandler) ReverseRepayment(ctx context.Context, req *dto.ReverseRepaymentRequest) (*dto.RepaymentResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "ReverseRepayment", h.uc.Payment.Reverse, *req)
}

func (h *LoanHandler) AssessOverdue(ctx context.Context, req *dto.AssessOverdueRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "AssessOverdue", h.uc.Servicing.AssessOverdue, *req)
}

func (h *LoanHandler) WaiveInstallment(ctx context.Context, req *dto.WaiveInstallmentRequest) (*dto.LoanResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.WaivedBy = claims.UserID
	return respond(ctx, h, "WaiveInstallment", h.uc.Servicing.WaiveInstallment, *req)
}

func (h *LoanHandler) MarkDefaulted(ctx context.Context, req *dto.MarkDefaultedRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "MarkDefaulted", h.uc.Servicing.MarkDefaulted, *req)
}

func (h *LoanHandler) CloseLoan(ctx context.Context, req *dto.LoanActionRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "CloseLoan", h.uc.Servicing.Close, *req)
}

// ---------------------------------------------------------------------------
// Workouts
// ---------------------------------------------------------------------------

func (h *LoanHandler) SubmitRestructure(ctx context.Context, req *dto.SubmitRestructureRequest) (*dto.WorkflowResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.SubmittedBy = claims.UserID
	return respond(ctx, h, "SubmitRestructure", h.uc.Restructure.Submit, *req)
}

func (h *LoanHandler) ApproveRestructure(ctx context.Context, req *dto.DecisionRequest) (*dto.WorkflowResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.DecidedBy = claims.UserID
	return respond(ctx, h, "ApproveRestructure", h.uc.Restructure.Approve, *req)
}

func (h *LoanHandler) RejectRestructure(ctx context.Context, req *dto.DecisionRequest) (*dto.WorkflowResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.DecidedBy = claims.UserID
	return respond(ctx, h, "RejectRestructure", h.uc.Restructure.Reject, *req)
}

func (h *LoanHandler) ActivateRestructure(ctx context.Context, req *dto.ActivateRestructureRequest) (*dto.LoanResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.Actor = claims.UserID
	return respond(ctx, h, "ActivateRestructure", h.uc.Restructure.Activate, *req)
}

func (h *LoanHandler) SubmitWriteOff(ctx context.Context, req *dto.SubmitWriteOffRequest) (*dto.WorkflowResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.SubmittedBy = claims.UserID
	return respond(ctx, h, "SubmitWriteOff", h.uc.WriteOff.Submit, *req)
}

func (h *LoanHandler) ApproveWriteOff(ctx context.Context, req *dto.DecisionRequest) (*dto.WorkflowResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.DecidedBy = claims.UserID
	return respond(ctx, h, "ApproveWriteOff", h.uc.WriteOff.Approve, *req)
}

func (h *LoanHandler) RejectWriteOff(ctx context.Context, req *dto.DecisionRequest) (*dto.WorkflowResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.DecidedBy = claims.UserID
	return respond(ctx, h, "RejectWriteOff", h.uc.WriteOff.Reject, *req)
}

func (h *LoanHandler) ProcessWriteOff(ctx context.Context, req *dto.ProcessWriteOffRequest) (*dto.WorkflowResponse, error) {
	claims, err := scope(ctx, &req.TenantID)
	if err != nil {
		return nil, err
	}
	req.Actor = claims.UserID
	return respond(ctx, h, "ProcessWriteOff", h.uc.WriteOff.Process, *req)
}

func (h *LoanHandler) RecordRecovery(ctx context.Context, req *dto.RecoveryRequest) (*dto.RepaymentResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "RecordRecovery", h.uc.WriteOff.Recover, *req)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (h *LoanHandler) GetLoan(ctx context.Context, req *dto.GetLoanRequest) (*dto.LoanResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "GetLoan", h.uc.GetLoan.Execute, *req)
}

func (h *LoanHandler) ListLoans(ctx context.Context, req *dto.ListLoansRequest) (*dto.ListLoansResponse, error) {
	if _, err := scope(ctx, &req.TenantID); err != nil {
		return nil, err
	}
	return respond(ctx, h, "ListLoans", h.uc.GetLoan.ListByMember, *req)
}
