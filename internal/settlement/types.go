package settlement

import "encoding/json"

// Roles assigns escrow capabilities to addresses.
type Roles struct {
	Approver        string `json:"approver"`
	ServiceProvider string `json:"serviceProvider"`
	PlatformAddress string `json:"platformAddress"`
	ReleaseSigner   string `json:"releaseSigner"`
	DisputeResolver string `json:"disputeResolver"`
	Receiver        string `json:"receiver"`
}

// Milestone is a single-release milestone description.
type Milestone struct {
	Description string `json:"description"`
}

// Trustline identifies the asset the escrow is denominated in.
type Trustline struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

// DeployRequest is the body of POST /deployer/single-release.
// Amounts are sent as JSON numbers.
type DeployRequest struct {
	Signer       string      `json:"signer"`
	EngagementID string      `json:"engagementId"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Roles        Roles       `json:"roles"`
	Amount       json.Number `json:"amount"`
	PlatformFee  json.Number `json:"platformFee"`
	Milestones   []Milestone `json:"milestones"`
	Trustline    Trustline   `json:"trustline"`
}

// FundRequest is the body of POST /escrow/fund.
type FundRequest struct {
	ContractID string      `json:"contractId"`
	Amount     json.Number `json:"amount"`
	Signer     string      `json:"signer"`
}

// ApproveMilestoneRequest is the body of POST /milestone/approve.
type ApproveMilestoneRequest struct {
	ContractID     string `json:"contractId"`
	MilestoneIndex string `json:"milestoneIndex"`
	Approver       string `json:"approver"`
}

// ReleaseRequest is the body of POST /escrow/release-funds/single-release.
type ReleaseRequest struct {
	ContractID    string `json:"contractId"`
	ReleaseSigner string `json:"releaseSigner"`
}

// UnsignedTransaction is returned by every step that needs a signature.
type UnsignedTransaction struct {
	Status string `json:"status"`
	XDR    string `json:"unsignedTransaction"`
}

type sendRequest struct {
	SignedXDR string `json:"signedXdr"`
}

// SendResult is the relay outcome. ContractID is set when a deployment was relayed.
type SendResult struct {
	Status          string `json:"status"`
	ContractID      string `json:"contractId,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Message         string `json:"message,omitempty"`
}
