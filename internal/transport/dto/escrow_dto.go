package dto

import "github.com/google/uuid"

// Saga step hints returned to the client so it can resume an interrupted flow.
const (
	NextStepDeploy       = "deploy"
	NextStepSendDeploy   = "send_deploy"
	NextStepFund         = "fund"
	NextStepSendFund     = "send_fund"
	NextStepFinalize     = "finalize"
	NextStepDeliver      = "deliver"
	NextStepApprove      = "approve_milestone"
	NextStepSendApproval = "send_approval"
	NextStepConfirm      = "confirm"
	NextStepDone         = "done"
)

// DeployEscrowRequest starts the accept-and-fund saga. Every escrow role is derived
// from the job and the application; none is taken from input.
type DeployEscrowRequest struct {
	JobID           uuid.UUID `json:"job_id" validate:"required"`
	ApplicationID   uuid.UUID `json:"application_id" validate:"required"`
	EmployerAddress string    `json:"employer_address" validate:"required,min=3"`
	Title           *string   `json:"title,omitempty" validate:"omitempty,max=200"`
	Description     *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	Milestones      []string  `json:"milestones,omitempty" validate:"omitempty,max=1,dive,min=1,max=500"`
}

type DeployEscrowResponse struct {
	Success             bool   `json:"success"`
	UnsignedTransaction string `json:"unsigned_transaction,omitempty"`
	EngagementID        string `json:"engagement_id,omitempty"`
	ContractID          string `json:"contract_id,omitempty"`
	AlreadyDeployed     bool   `json:"already_deployed"`
	NextStep            string `json:"next_step"`
}

// SendDeployRequest relays the employer-signed deployment.
type SendDeployRequest struct {
	JobID             uuid.UUID `json:"job_id" validate:"required"`
	SignedTransaction string    `json:"signed_transaction" validate:"required"`
}

type SendDeployResponse struct {
	Success         bool   `json:"success"`
	ContractID      string `json:"contract_id"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	AlreadyDeployed bool   `json:"already_deployed"`
	NextStep        string `json:"next_step"`
}

type FundEscrowRequest struct {
	JobID  uuid.UUID `json:"job_id" validate:"required"`
	Signer string    `json:"signer" validate:"required,min=3"`
}

type FundEscrowResponse struct {
	Success             bool   `json:"success"`
	UnsignedTransaction string `json:"unsigned_transaction,omitempty"`
	ContractID          string `json:"contract_id"`
	Amount              string `json:"amount"`
	AlreadyFunded       bool   `json:"already_funded"`
	NextStep            string `json:"next_step"`
}

type SendFundRequest struct {
	JobID             uuid.UUID `json:"job_id" validate:"required"`
	SignedTransaction string    `json:"signed_transaction" validate:"required"`
}

type SendFundResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	AlreadyFunded   bool   `json:"already_funded"`
	NextStep        string `json:"next_step"`
}

// FinalizeAcceptRequest creates the agreement once the escrow is funded.
// EmployerAddress is checked when present.
type FinalizeAcceptRequest struct {
	JobID           uuid.UUID `json:"job_id" validate:"required"`
	ApplicationID   uuid.UUID `json:"application_id" validate:"required"`
	EmployerAddress string    `json:"employer_address,omitempty"`
}

type FinalizeAcceptResponse struct {
	Success          bool              `json:"success"`
	AgreementID      uuid.UUID         `json:"agreement_id"`
	Agreement        AgreementResponse `json:"agreement"`
	AlreadyFinalized bool              `json:"already_finalized"`
	RejectedCount    int               `json:"rejected_applications"`
	NextStep         string            `json:"next_step"`
}

type ApproveMilestoneRequest struct {
	AgreementID uuid.UUID `json:"agreement_id" validate:"required"`
	Approver    string    `json:"approver" validate:"required,min=3"`
}

type ApproveMilestoneResponse struct {
	Success             bool   `json:"success"`
	UnsignedTransaction string `json:"unsigned_transaction,omitempty"`
	AlreadyApproved     bool   `json:"already_approved"`
	NextStep            string `json:"next_step"`
}

// SendApprovalRequest records the approval. SignedTransaction is required unless
// AlreadyApproved is set, in which case the claim is re-verified with the rail.
type SendApprovalRequest struct {
	AgreementID       uuid.UUID `json:"agreement_id" validate:"required"`
	SignedTransaction string    `json:"signed_transaction,omitempty" validate:"required_without=AlreadyApproved"`
	AlreadyApproved   bool      `json:"already_approved,omitempty"`
}

type SendApprovalResponse struct {
	Success         bool              `json:"success"`
	TransactionHash string            `json:"transaction_hash"`
	AlreadyApproved bool              `json:"already_approved"`
	Agreement       AgreementResponse `json:"agreement"`
	NextStep        string            `json:"next_step"`
}
