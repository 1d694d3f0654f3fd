package entity

import "time"

// Expense is a single reimbursement claim.
// ConvertedAmount is frozen at creation in the company's default currency.
type Expense struct {
	ID                string        `json:"id"`
	CompanyID         string        `json:"companyId"`
	UserID            string        `json:"userId"`
	Description       string        `json:"description"`
	Category          string        `json:"category"`
	Amount            float64       `json:"amount"`
	Currency          string        `json:"currency"`
	ConvertedAmount   float64       `json:"convertedAmount"`
	ConvertedCurrency string        `json:"convertedCurrency"`
	Vendor            string        `json:"vendor"`
	ExpenseDate       string        `json:"expenseDate"`
	Status            ExpenseStatus `json:"status"`
	ReceiptName       string        `json:"receiptName"`
	CreatedAt         time.Time     `json:"createdAt"`
	DecidedAt         *time.Time    `json:"decidedAt,omitempty"`
	DecidedBy         *string       `json:"decidedBy,omitempty"`
}

// ApprovalHistory is an append-only audit row for an expense
type ApprovalHistory struct {
	ID          string        `json:"id"`
	ExpenseID   string        `json:"expenseId"`
	ActorUserID string        `json:"actorUserId"`
	Action      HistoryAction `json:"action"`
	Comment     string        `json:"comment,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}
