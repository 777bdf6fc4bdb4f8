// Package pipeline runs a billable operation end to end: validate the input,
// authenticate the key, check the plan and balance, run the operation, debit
// the account and append a usage record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"devclip/internal/auth"
	"devclip/internal/catalog"
	"devclip/internal/models"
	"devclip/internal/providers"
	"devclip/internal/storage"
	"devclip/internal/utils"
)

// Default input caps
const (
	DefaultLocalMaxBytes = 100 * 1024
	DefaultAIMaxBytes    = 10 * 1024
)

// CredentialResolver maps a presented secret to an active key
type CredentialResolver interface {
	Resolve(ctx context.Context, secret string) (*models.APIKey, error)
}

// Ledger reads and debits accounts
type Ledger interface {
	Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount int64) (*models.Account, error)
}

// Formatter runs local operations
type Formatter interface {
	Format(op, text, lang string) (string, error)
}

// Assistant runs AI operations
type Assistant interface {
	Invoke(ctx context.Context, text, op string, tier models.PlanTier) (*providers.Completion, error)
}

// UsageRecorder appends usage records
type UsageRecorder interface {
	Record(ctx context.Context, record *models.UsageRecord) error
}

// Limits caps input size per operation category
type Limits struct {
	LocalMaxBytes int
	AIMaxBytes    int
}

// Request is a single billable call. Key, when set, is a key the caller
// already resolved from Secret and is used instead of resolving again.
// Category, when set, restricts Operation to that category.
type Request struct {
	Secret    string
	Key       *models.APIKey
	Category  catalog.Category
	Operation string
	Text      string
	Language  string // code formatter only, detected when empty
	RequestID string // generated when empty
}

// Result is the outcome of a successful call
type Result struct {
	Operation        string `json:"operation"`
	Output           string `json:"result"`
	CreditsCharged   int64  `json:"credits_charged"`
	CreditsRemaining int64  `json:"credits_remaining"`
	Tokens           int    `json:"tokens"`
}

// Config wires the collaborators of a Pipeline. Assistant may be nil, in
// which case AI operations fail as upstream errors.
type Config struct {
	Catalog   *catalog.Catalog
	Keys      CredentialResolver
	Ledger    Ledger
	Formatter Formatter
	Assistant Assistant
	Usage     UsageRecorder
	Limits    Limits
}

// Pipeline executes billable operations
type Pipeline struct {
	catalog   *catalog.Catalog
	keys      CredentialResolver
	ledger    Ledger
	formatter Formatter
	assistant Assistant
	usage     UsageRecorder
	limits    Limits
	logger    *utils.Logger
}

// New creates a pipeline
func New(config Config) *Pipeline {
	limits := config.Limits
	if limits.LocalMaxBytes <= 0 {
		limits.LocalMaxBytes = DefaultLocalMaxBytes
	}
	if limits.AIMaxBytes <= 0 {
		limits.AIMaxBytes = DefaultAIMaxBytes
	}
	cat := config.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	return &Pipeline{
		catalog:   cat,
		keys:      config.Keys,
		ledger:    config.Ledger,
		formatter: config.Formatter,
		assistant: config.Assistant,
		usage:     config.Usage,
		limits:    limits,
		logger:    utils.NewLogger("pipeline"),
	}
}

// Execute runs req. Every failure is a *Error. A failed operation never
// debits the account; a successful one is debited exactly once.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Result, error) {
	def, err := p.validate(req)
	if err != nil {
		return nil, err
	}

	key := req.Key
	if key == nil {
		key, err = p.authenticate(ctx, req.Secret)
		if err != nil {
			return nil, err
		}
	}

	account, err := p.ledger.Get(ctx, key.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, newError(KindAuthentication, "invalid API key", err)
		}
		return nil, newError(KindInternal, "failed to load account", err)
	}

	if !def.AllowedFor(account.Tier) {
		return nil, newError(KindAuthorization,
			fmt.Sprintf("operation %s requires the %s plan", def.Name, def.MinTier), nil)
	}
	if !account.CanAfford(def.Cost) {
		return nil, insufficientBalance(def.Cost, account.Balance)
	}

	output, tokens, err := p.dispatch(ctx, def, req, account.Tier)
	if err != nil {
		return nil, err
	}

	debited, err := p.ledger.Debit(ctx, account.ID, def.Cost)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientBalance) {
			// Another request spent the credits after the cost check.
			return nil, insufficientBalance(def.Cost, p.currentBalance(ctx, account.ID))
		}
		return nil, newError(KindInternal, "failed to debit account", err)
	}

	p.recordUsage(ctx, req, key, def.Cost, output, tokens)

	return &Result{
		Operation:        def.Name,
		Output:           output,
		CreditsCharged:   def.Cost,
		CreditsRemaining: debited.Balance,
		Tokens:           tokens,
	}, nil
}

func (p *Pipeline) validate(req Request) (catalog.Definition, error) {
	def, err := p.catalog.Lookup(req.Operation)
	if err != nil {
		return def, newError(KindValidation, fmt.Sprintf("unknown operation %q", req.Operation), err)
	}
	if req.Category != "" && def.Category != req.Category {
		return def, newError(KindValidation, fmt.Sprintf("operation %q is not in the %s category", req.Operation, req.Category), nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return def, newError(KindValidation, "text is required", nil)
	}

	limit := p.limits.LocalMaxBytes
	if def.Category == catalog.CategoryAI {
		limit = p.limits.AIMaxBytes
	}
	if len(req.Text) > limit {
		return def, newError(KindValidation, fmt.Sprintf("text exceeds %d bytes", limit), nil)
	}
	return def, nil
}

func (p *Pipeline) authenticate(ctx context.Context, secret string) (*models.APIKey, error) {
	if secret == "" {
		return nil, newError(KindAuthentication, "missing API key", nil)
	}
	key, err := p.keys.Resolve(ctx, secret)
	if err != nil {
		if errors.Is(err, auth.ErrMalformedKey) || errors.Is(err, auth.ErrKeyNotFound) {
			return nil, newError(KindAuthentication, "invalid API key", err)
		}
		return nil, newError(KindInternal, "failed to resolve API key", err)
	}
	return key, nil
}

func (p *Pipeline) dispatch(ctx context.Context, def catalog.Definition, req Request, tier models.PlanTier) (string, int, error) {
	if def.Category == catalog.CategoryLocal {
		out, err := p.formatter.Format(def.Name, req.Text, req.Language)
		if err != nil {
			return "", 0, newError(KindOperation, err.Error(), err)
		}
		return out, 0, nil
	}

	if p.assistant == nil {
		return "", 0, &Error{Kind: KindOperation, Message: "AI provider is not configured", Upstream: true}
	}
	completion, err := p.assistant.Invoke(ctx, req.Text, def.Name, tier)
	if err != nil {
		p.logger.Warn("AI operation failed", "operation", def.Name, "error", err)
		return "", 0, &Error{Kind: KindOperation, Message: "AI provider request failed", Upstream: true, Err: err}
	}
	return completion.Text, completion.TotalTokens, nil
}

func (p *Pipeline) currentBalance(ctx context.Context, accountID uuid.UUID) int64 {
	account, err := p.ledger.Get(ctx, accountID)
	if err != nil {
		return 0
	}
	return account.Balance
}

func (p *Pipeline) recordUsage(ctx context.Context, req Request, key *models.APIKey, cost int64, output string, tokens int) {
	if p.usage == nil {
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	keyID := key.ID

	record := &models.UsageRecord{
		AccountID:      key.AccountID,
		APIKeyID:       &keyID,
		RequestID:      requestID,
		Operation:      req.Operation,
		InputSnapshot:  models.Snapshot(req.Text),
		OutputSnapshot: models.Snapshot(output),
		CreditsCharged: cost,
		TokensUsed:     tokens,
	}
	if err := p.usage.Record(ctx, record); err != nil {
		p.logger.Error("Failed to record usage", "account_id", key.AccountID, "request_id", requestID, "error", err)
	}
}
