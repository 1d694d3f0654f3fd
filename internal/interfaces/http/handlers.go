package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

const (
	identityKey    = "identity"
	identityErrKey = "identity_error"
)

// multipartOverhead is allowed on top of the receipt limit for form fields and boundaries
const multipartOverhead = 64 << 10

// Handlers contains all HTTP request handlers
type Handlers struct {
	services    Services
	authEnabled bool
	maxUpload   int64
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, config ServerConfig, logger Logger) *Handlers {
	return &Handlers{
		services:    services,
		authEnabled: config.AuthEnabled,
		maxUpload:   config.MaxUploadBytes,
		logger:      logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// ItemsResponse wraps list results
type ItemsResponse struct {
	Items interface{} `json:"items"`
}

// OKResponse acknowledges a command without a payload
type OKResponse struct {
	OK bool `json:"ok"`
}

// resolveIdentity attaches the caller identity when an Authorization header is present.
// A rejected token is kept for caller, so handlers that accept anonymous
// requests (the bootstrap branch of POST /api/users) are not blocked by it.
func (h *Handlers) resolveIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		identity, err := h.services.Auth.Authenticate(c.Request.Context(), header)
		if err != nil {
			c.Set(identityErrKey, err)
			c.Next()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// caller returns the authenticated identity, or nil when authentication is disabled
func (h *Handlers) caller(c *gin.Context) (*service.Identity, error) {
	if !h.authEnabled {
		return nil, nil
	}
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(*service.Identity); ok {
			return identity, nil
		}
	}
	if v, ok := c.Get(identityErrKey); ok {
		if err, ok := v.(error); ok {
			return nil, err
		}
	}
	return nil, service.Unauthorized("Unauthorized")
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.services.Health != nil {
		healthy, components := h.services.Health(c.Request.Context())
		response.Components = components
		if !healthy {
			status = http.StatusServiceUnavailable
			response.Status = "degraded"
		}
	}

	c.JSON(status, response)
}

// ListExpenses handles GET /api/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	var query expenseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	companyID, filter, err := scopeExpenses(identity, query.CompanyID, query.filter())
	if err != nil {
		h.respondError(c, err)
		return
	}

	items, err := h.services.Expenses.List(c.Request.Context(), companyID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemsResponse{Items: orEmpty(items)})
}

// CreateExpense handles POST /api/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req createExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := checkSubmitter(identity, req.CompanyID, req.UserID); err != nil {
		h.respondError(c, err)
		return
	}

	expense, err := h.services.Expenses.Create(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	detail, err := h.services.Expenses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := checkExpense(identity, detail.Expense); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Approve handles POST /api/approvals/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.decide(c, entity.StatusApproved)
}

// Reject handles POST /api/approvals/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	h.decide(c, entity.StatusRejected)
}

func (h *Handlers) decide(c *gin.Context, status entity.ExpenseStatus) {
	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := checkReviewer(identity); err != nil {
		h.respondError(c, err)
		return
	}

	var req decisionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	expenseID := c.Param("id")
	actor := req.ActorUserID
	if identity != nil {
		detail, err := h.services.Expenses.Get(ctx, expenseID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if err := checkCompany(identity, detail.Expense.CompanyID); err != nil {
			h.respondError(c, err)
			return
		}
		actor = identity.UserID
	}

	_, err = h.services.Expenses.Transition(ctx, service.TransitionInput{
		ExpenseID:   expenseID,
		Status:      status,
		ActorUserID: actor,
		Comment:     req.Comment,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// ApprovalQueue handles GET /api/approvals/queue
func (h *Handlers) ApprovalQueue(c *gin.Context) {
	var query queueQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	managerID, err := queueManager(identity, query.ManagerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if managerID == "" {
		c.JSON(http.StatusOK, ItemsResponse{Items: []service.QueueItem{}})
		return
	}

	items, err := h.services.Approvals.PendingQueue(c.Request.Context(), managerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if identity != nil {
		scoped := items[:0]
		for _, item := range items {
			if item.CompanyID == identity.CompanyID {
				scoped = append(scoped, item)
			}
		}
		items = scoped
	}
	c.JSON(http.StatusOK, ItemsResponse{Items: orEmpty(items)})
}

// ListUsers handles GET /api/users, including the lookup variant
func (h *Handlers) ListUsers(c *gin.Context) {
	var query usersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	companyID := companyOrOwn(identity, query.CompanyID)
	if err := checkCompany(identity, companyID); err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if query.Lookup != "" && companyID != "" {
		profile, err := h.services.Users.LookupByEmail(ctx, companyID, query.Lookup)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
		return
	}

	users, err := h.services.Users.ListUsers(ctx, companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemsResponse{Items: orEmpty(users)})
}

// CreateUser handles POST /api/users. A body with "__bootstrap": true creates
// a company with its first admin and needs no credentials.
func (h *Handlers) CreateUser(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		respondBindError(c, err)
		return
	}
	var flag bootstrapFlag
	if err := json.Unmarshal(raw, &flag); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	if flag.Bootstrap {
		var req bootstrapRequest
		if err := binding.JSON.BindBody(raw, &req); err != nil {
			respondBindError(c, err)
			return
		}
		profile, err := h.services.Users.Bootstrap(ctx, req.input())
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
		return
	}

	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := checkAdmin(identity); err != nil {
		h.respondError(c, err)
		return
	}

	var req createUserRequest
	if err := binding.JSON.BindBody(raw, &req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := checkCompany(identity, req.CompanyID); err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.services.Users.CreateUser(ctx, req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Signup handles POST /api/signup
func (h *Handlers) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	profile, err := h.services.Users.Signup(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Profile handles GET /api/profile. It always needs a bearer token.
func (h *Handlers) Profile(c *gin.Context) {
	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if identity == nil {
		identity, err = h.services.Auth.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			h.respondError(c, err)
			return
		}
	}

	profile, err := h.services.Users.Profile(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetWorkflow handles GET /api/workflows
func (h *Handlers) GetWorkflow(c *gin.Context) {
	var query workflowQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	companyID := companyOrOwn(identity, query.CompanyID)
	if companyID == "" {
		c.JSON(http.StatusOK, gin.H{"item": nil})
		return
	}
	if err := checkCompany(identity, companyID); err != nil {
		h.respondError(c, err)
		return
	}

	rule, err := h.services.Rules.GetRule(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": rule})
}

// UpsertWorkflow handles POST /api/workflows
func (h *Handlers) UpsertWorkflow(c *gin.Context) {
	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := checkAdmin(identity); err != nil {
		h.respondError(c, err)
		return
	}

	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := checkCompany(identity, req.CompanyID); err != nil {
		h.respondError(c, err)
		return
	}

	rule, err := h.services.Rules.Upsert(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": rule})
}

// ListCountries handles GET /api/countries
func (h *Handlers) ListCountries(c *gin.Context) {
	countries, err := h.services.Countries.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemsResponse{Items: orEmpty(countries)})
}

// Recover handles POST /api/auth/recover
func (h *Handlers) Recover(c *gin.Context) {
	var req recoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Unreadable bodies are treated as a missing email
		req.Email = ""
	}

	if err := h.services.Auth.Recover(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// UploadReceipt handles POST /api/receipts (multipart companyId + file)
func (h *Handlers) UploadReceipt(c *gin.Context) {
	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}

	var form receiptForm
	if err := c.ShouldBind(&form); err != nil {
		h.respondUploadError(c, err)
		return
	}
	if err := checkCompany(identity, form.CompanyID); err != nil {
		h.respondError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.respondUploadError(c, err)
		return
	}
	content, err := readUpload(header)
	if err != nil {
		h.respondUploadError(c, err)
		return
	}

	result, err := h.services.Receipts.Upload(c.Request.Context(), service.UploadReceiptInput{
		CompanyID: form.CompanyID,
		Filename:  header.Filename,
		Content:   content,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DownloadReceipt handles GET /api/receipts/:companyId/:name
func (h *Handlers) DownloadReceipt(c *gin.Context) {
	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	companyID := c.Param("companyId")
	if err := checkCompany(identity, companyID); err != nil {
		h.respondError(c, err)
		return
	}

	file, err := h.services.Receipts.Open(c.Request.Context(), companyID, c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", attachment(file.Name))
	c.Data(http.StatusOK, http.DetectContentType(file.Content), file.Content)
}

// ExportExpenses handles GET /api/reports/expenses
func (h *Handlers) ExportExpenses(c *gin.Context) {
	var query expenseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	identity, err := h.caller(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	companyID, filter, err := scopeExpenses(identity, query.CompanyID, query.filter())
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	info, err := h.services.Reports.Export(c.Request.Context(), companyID, filter, &buf)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", attachment(info.Filename))
	c.Data(http.StatusOK, info.ContentType, buf.Bytes())
}

// InitDemo handles POST /api/demo/init
func (h *Handlers) InitDemo(c *gin.Context) {
	result, err := h.services.Demo.InitDemo(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// orEmpty keeps list responses as [] rather than null
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// bindOptionalJSON binds a JSON body when one was sent
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handlers) respondUploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		h.respondError(c, service.BadRequest(fmt.Sprintf("Receipt exceeds the %d byte limit", h.maxUpload)))
	case errors.Is(err, http.ErrMissingFile):
		h.respondError(c, service.BadRequest("file is required"))
	default:
		respondBindError(c, err)
	}
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
