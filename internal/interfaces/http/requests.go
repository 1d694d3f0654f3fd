package http

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors report json/form names instead of Go field names
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})
	})
}

type expenseQuery struct {
	CompanyID string `form:"companyId"`
	UserID    string `form:"userId"`
	Status    string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
}

func (q expenseQuery) filter() port.ExpenseFilter {
	return port.ExpenseFilter{UserID: q.UserID, Status: entity.ExpenseStatus(q.Status)}
}

// currencyCode upper-cases and trims on decode so "eur" validates as iso4217
type currencyCode string

func (c *currencyCode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = currencyCode(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// Category and expenseDate are optional; an empty category never auto-approves
type createExpenseRequest struct {
	CompanyID   string       `json:"companyId" binding:"required"`
	UserID      string       `json:"userId" binding:"required"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Amount      float64      `json:"amount" binding:"required,gt=0"`
	Currency    currencyCode `json:"currency" binding:"required,iso4217"`
	Vendor      string       `json:"vendor"`
	ExpenseDate string       `json:"expenseDate" binding:"omitempty,datetime=2006-01-02"`
	ReceiptName string       `json:"receiptName"`
}

func (r createExpenseRequest) input() service.CreateExpenseInput {
	return service.CreateExpenseInput{
		CompanyID:   r.CompanyID,
		UserID:      r.UserID,
		Description: r.Description,
		Category:    r.Category,
		Amount:      r.Amount,
		Currency:    string(r.Currency),
		Vendor:      r.Vendor,
		ExpenseDate: r.ExpenseDate,
		ReceiptName: r.ReceiptName,
	}
}

type decisionRequest struct {
	Comment     string `json:"comment" binding:"max=2000"`
	ActorUserID string `json:"actorUserId"`
}

type queueQuery struct {
	ManagerID string `form:"managerId"`
}

type usersQuery struct {
	CompanyID string `form:"companyId"`
	Lookup    string `form:"lookup"`
}

// bootstrapFlag detects the bootstrap variant of POST /api/users
type bootstrapFlag struct {
	Bootstrap bool `json:"__bootstrap"`
}

type createUserRequest struct {
	CompanyID string `json:"companyId" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Role      string `json:"role" binding:"required,oneof=admin manager employee"`
	ManagerID string `json:"managerId"`
}

func (r createUserRequest) input() service.CreateUserInput {
	return service.CreateUserInput{
		CompanyID: r.CompanyID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      entity.Role(r.Role),
		ManagerID: r.ManagerID,
	}
}

type bootstrapRequest struct {
	CompanyName     string `json:"companyName" binding:"required"`
	CountryCode     string `json:"countryCode" binding:"omitempty,iso3166_1_alpha2"`
	DefaultCurrency string `json:"defaultCurrency" binding:"omitempty,iso4217"`
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
}

func (r bootstrapRequest) input() service.BootstrapInput {
	return service.BootstrapInput{
		CompanyName:     r.CompanyName,
		CountryCode:     r.CountryCode,
		DefaultCurrency: r.DefaultCurrency,
		Name:            r.Name,
		Email:           r.Email,
	}
}

type signupRequest struct {
	CompanyName string `json:"companyName" binding:"required"`
	Country     string `json:"country"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
}

func (r signupRequest) input() service.SignupInput {
	return service.SignupInput{
		CompanyName: r.CompanyName,
		Country:     r.Country,
		Name:        r.Name,
		Email:       r.Email,
	}
}

type workflowQuery struct {
	CompanyID string `form:"companyId"`
}

type workflowRequest struct {
	ID                     string             `json:"id"`
	CompanyID              string             `json:"companyId" binding:"required"`
	Name                   *string            `json:"name"`
	MinimumApprovalPercent *float64           `json:"minimumApprovalPercent" binding:"omitempty,gte=0,lte=100"`
	Percent                *float64           `json:"percent" binding:"omitempty,gte=0,lte=100"`
	Config                 *entity.RuleConfig `json:"config"`
}

func (r workflowRequest) input() service.UpsertRuleInput {
	percent := r.MinimumApprovalPercent
	if percent == nil {
		percent = r.Percent
	}
	return service.UpsertRuleInput{
		ID:                     r.ID,
		CompanyID:              r.CompanyID,
		Name:                   r.Name,
		MinimumApprovalPercent: percent,
		Config:                 r.Config,
	}
}

// recoverRequest leaves the email check to the service so the message matches other clients
type recoverRequest struct {
	Email string `json:"email"`
}

type receiptForm struct {
	CompanyID string `form:"companyId" binding:"required"`
}
