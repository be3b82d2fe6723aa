package client

import "github.com/kusinaph/kusina-server/internal/models"

// Wire types re-exported so importers can name and construct them
// without reaching into internal packages.
type (
	User        = models.User
	MenuItem    = models.MenuItem
	Order       = models.Order
	OrderLine   = models.OrderLine
	ChatMessage = models.ChatMessage
)

// Account roles.
const (
	RoleBuyer    = models.RoleBuyer
	RoleOperator = models.RoleOperator
)

// Payment methods and statuses.
const (
	PaymentMethodCOD    = models.PaymentMethodCOD
	PaymentMethodWallet = models.PaymentMethodWallet

	PaymentPending = models.PaymentPending
	PaymentPaid    = models.PaymentPaid
	PaymentFailed  = models.PaymentFailed
)

// Fulfillment statuses.
const (
	StatusPending        = models.StatusPending
	StatusPreparing      = models.StatusPreparing
	StatusOutForDelivery = models.StatusOutForDelivery
	StatusDelivered      = models.StatusDelivered
	StatusCancelled      = models.StatusCancelled
)
