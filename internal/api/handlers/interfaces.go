// internal/api/handlers/interfaces.go
package handlers

import "github.com/gin-gonic/gin"

// EscrowHandlerInterface defines the methods needed by the escrow saga routes.
type EscrowHandlerInterface interface {
	DeployEscrow(c *gin.Context)
	SendDeploy(c *gin.Context)
	FundEscrow(c *gin.Context)
	SendFund(c *gin.Context)
	FinalizeAccept(c *gin.Context)
	ApproveMilestone(c *gin.Context)
	SendApproval(c *gin.Context)
}

// AgreementHandlerInterface defines the methods needed by the agreement routes.
type AgreementHandlerInterface interface {
	GetAgreement(c *gin.Context)
	ListAgreements(c *gin.Context)
	ListTransactions(c *gin.Context)
	DeliverWork(c *gin.Context)
	RequestChanges(c *gin.Context)
	ConfirmRelease(c *gin.Context)
}

// JobHandlerInterface defines the methods needed by the job routes.
type JobHandlerInterface interface {
	CreateJob(c *gin.Context)
	PublishJob(c *gin.Context)
	GetJobByID(c *gin.Context)
	ListJobs(c *gin.Context)
}

// ApplicationHandlerInterface defines the methods needed by the application routes.
type ApplicationHandlerInterface interface {
	ApplyToJob(c *gin.Context)
	ListApplicationsByJob(c *gin.Context)
	RejectApplication(c *gin.Context)
}

// UserHandlerInterface defines the methods needed by the user routes.
type UserHandlerInterface interface {
	GetUserByAddress(c *gin.Context)
}

// NotificationHandlerInterface defines the methods needed by the notification routes.
type NotificationHandlerInterface interface {
	ListNotifications(c *gin.Context)
	MarkRead(c *gin.Context)
}

// Ensure handlers implements the interface (compile-time check)
var _ EscrowHandlerInterface = (*EscrowHandler)(nil)
var _ AgreementHandlerInterface = (*AgreementHandler)(nil)
var _ JobHandlerInterface = (*JobHandler)(nil)
var _ ApplicationHandlerInterface = (*ApplicationHandler)(nil)
var _ UserHandlerInterface = (*UserHandler)(nil)
var _ NotificationHandlerInterface = (*NotificationHandler)(nil)
