package http

import (
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// Access rules for authenticated callers. A nil identity means
// authentication is disabled and every rule passes.

func checkCompany(id *service.Identity, companyID string) error {
	if id == nil || id.CompanyID == companyID {
		return nil
	}
	return service.Forbidden("Access to another company is forbidden")
}

func checkReviewer(id *service.Identity) error {
	if id == nil || id.Role.CanReview() {
		return nil
	}
	return service.Forbidden("Only managers and admins can review expenses")
}

func checkAdmin(id *service.Identity) error {
	if id == nil || id.Role == entity.RoleAdmin {
		return nil
	}
	return service.Forbidden("Only admins can perform this action")
}

// checkExpense allows reviewers any expense of their company and employees their own
func checkExpense(id *service.Identity, expense *entity.Expense) error {
	if err := checkCompany(id, expense.CompanyID); err != nil {
		return err
	}
	if id == nil || id.Role.CanReview() || expense.UserID == id.UserID {
		return nil
	}
	return service.Forbidden("Employees can only view their own expenses")
}

// queueManager resolves whose queue the caller may read. An empty result means no queue.
func queueManager(id *service.Identity, requested string) (string, error) {
	if id == nil {
		return requested, nil
	}
	if err := checkReviewer(id); err != nil {
		return "", err
	}
	if requested == "" || requested == id.UserID {
		return id.UserID, nil
	}
	if id.Role != entity.RoleAdmin {
		return "", service.Forbidden("Managers can only view their own queue")
	}
	return requested, nil
}

// scopeExpenses fills in the caller's company and restricts employees to their own expenses
func scopeExpenses(id *service.Identity, companyID string, filter port.ExpenseFilter) (string, port.ExpenseFilter, error) {
	if id == nil {
		return companyID, filter, nil
	}
	if companyID == "" {
		companyID = id.CompanyID
	}
	if err := checkCompany(id, companyID); err != nil {
		return "", filter, err
	}
	if !id.Role.CanReview() {
		filter.UserID = id.UserID
	}
	return companyID, filter, nil
}

// companyOrOwn defaults an empty company id to the caller's company
func companyOrOwn(id *service.Identity, companyID string) string {
	if companyID == "" && id != nil {
		return id.CompanyID
	}
	return companyID
}

// checkSubmitter lets non-admins submit expenses only for themselves
func checkSubmitter(id *service.Identity, companyID, userID string) error {
	if err := checkCompany(id, companyID); err != nil {
		return err
	}
	if id == nil || id.Role == entity.RoleAdmin || id.UserID == userID {
		return nil
	}
	return service.Forbidden("Expenses can only be submitted for yourself")
}
