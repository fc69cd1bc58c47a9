package services

import (
	"context"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/settlement"
	"escrow-marketplace/internal/signer"
	"escrow-marketplace/internal/transport/dto"
)

// Gateway is the settlement rail. *settlement.Client satisfies it.
type Gateway interface {
	DeployEscrow(ctx context.Context, req settlement.DeployRequest) (*settlement.UnsignedTransaction, error)
	FundEscrow(ctx context.Context, req settlement.FundRequest) (*settlement.UnsignedTransaction, error)
	ApproveMilestone(ctx context.Context, req settlement.ApproveMilestoneRequest) (*settlement.UnsignedTransaction, error)
	ReleaseFunds(ctx context.Context, req settlement.ReleaseRequest) (*settlement.UnsignedTransaction, error)
	SendTransaction(ctx context.Context, signedXDR string) (*settlement.SendResult, error)
}

// TrustedSigner signs on behalf of the platform. *signer.PlatformSigner satisfies it.
type TrustedSigner interface {
	Address() string
	Sign(unsignedTx string) (*signer.Signed, error)
}

// Notifier delivers in-app notifications. Implementations must not block the caller
// on delivery and never report failures back.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

var (
	_ Gateway       = (*settlement.Client)(nil)
	_ TrustedSigner = (*signer.PlatformSigner)(nil)
)

// EscrowService drives the accept-and-fund saga and the approval half of approve-and-release.
type EscrowService interface {
	DeployEscrow(ctx context.Context, req *dto.DeployEscrowRequest) (*dto.DeployEscrowResponse, error)
	SendDeploy(ctx context.Context, req *dto.SendDeployRequest) (*dto.SendDeployResponse, error)
	FundEscrow(ctx context.Context, req *dto.FundEscrowRequest) (*dto.FundEscrowResponse, error)
	SendFund(ctx context.Context, req *dto.SendFundRequest) (*dto.SendFundResponse, error)
	FinalizeAccept(ctx context.Context, req *dto.FinalizeAcceptRequest) (*dto.FinalizeAcceptResponse, error)
	ApproveMilestone(ctx context.Context, req *dto.ApproveMilestoneRequest) (*dto.ApproveMilestoneResponse, error)
	SendApproval(ctx context.Context, req *dto.SendApprovalRequest) (*dto.SendApprovalResponse, error)
}

// AgreementService covers the agreement state machine and the platform-signed release.
type AgreementService interface {
	GetAgreementByID(ctx context.Context, req *dto.GetAgreementByIDRequest) (*models.Agreement, error)
	ListAgreements(ctx context.Context, req *dto.ListAgreementsRequest) ([]models.Agreement, error)
	ListTransactions(ctx context.Context, req *dto.ListTransactionsRequest) ([]models.Transaction, error)
	DeliverWork(ctx context.Context, req *dto.DeliverWorkRequest) (*models.Agreement, error)
	RequestChanges(ctx context.Context, req *dto.RequestChangesRequest) (*models.Agreement, error)
	ConfirmAndRelease(ctx context.Context, req *dto.ConfirmReleaseRequest) (*dto.ConfirmReleaseResponse, error)
}

// JobService defines the interface for job-related business logic.
type JobService interface {
	CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*models.Job, error)
	PublishJob(ctx context.Context, req *dto.PublishJobRequest) (*models.Job, error)
	GetJobByID(ctx context.Context, req *dto.GetJobByIDRequest) (*models.Job, error)
	ListJobs(ctx context.Context, req *dto.ListJobsRequest) ([]models.Job, error)
}

// ApplicationService defines the interface for job application business logic.
type ApplicationService interface {
	ApplyToJob(ctx context.Context, req *dto.ApplyToJobRequest) (*models.Application, error)
	RejectApplication(ctx context.Context, req *dto.RejectApplicationRequest) (*models.Application, error)
	ListApplicationsByJob(ctx context.Context, req *dto.ListApplicationsByJobRequest) ([]models.Application, error)
}

// UserService defines the interface for user lookups.
type UserService interface {
	GetByAddress(ctx context.Context, req *dto.GetUserByAddressRequest) (*models.User, error)
}

// NotificationService reads and acknowledges in-app notifications.
type NotificationService interface {
	List(ctx context.Context, req *dto.ListNotificationsRequest) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, req *dto.MarkNotificationReadRequest) error
}
