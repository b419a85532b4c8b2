// Package demo declares the controllers served by `apireg serve`.
package demo

import (
	"sync"
	"time"

	"github.com/broady/apireg"
	"github.com/broady/apireg/schema"
	"github.com/google/uuid"
)

// Classes form the chain Base → Accounts → Admin. Controller stands alone.
var (
	BaseClass       = apireg.NewClass("Base", nil)
	AccountsClass   = apireg.NewClass("Accounts", BaseClass)
	AdminClass      = apireg.NewClass("Admin", AccountsClass)
	ControllerClass = apireg.NewClass("Controller", nil)
)

type Person struct {
	Age float64 `json:"age"`
}

type Summary struct {
	Age     float64 `json:"age"`
	Factor  float64 `json:"factor"`
	Product float64 `json:"product"`
}

type Controller struct {
	apireg.BaseController
}

// Apis combines a person with a factor.
func (c *Controller) Apis(p Person, factor float64, ctx *apireg.Context) (Summary, error) {
	return Summary{Age: p.Age, Factor: factor, Product: p.Age * factor}, nil
}

type Health struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type Signup struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=2,max=64"`
}

type Account struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Banned bool   `json:"banned"`
}

type store struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// Accounts serves accounts kept in memory.
type Accounts struct {
	apireg.BaseController

	*store
	now func() time.Time
}

func newAccounts(class *apireg.Class, s *store) *Accounts {
	return &Accounts{
		BaseController: apireg.NewBaseController(class),
		store:          s,
		now:            time.Now,
	}
}

func (a *Accounts) Health(ctx *apireg.Context) (Health, error) {
	return Health{Status: "ok", Time: a.now().UTC()}, nil
}

func (a *Accounts) Signup(s Signup, ctx *apireg.Context) (*Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, acc := range a.accounts {
		if acc.Email == s.Email {
			return nil, apireg.Errorf(apireg.CodeAlreadyExists, "%s is already registered", s.Email)
		}
	}
	acc := &Account{ID: uuid.NewString(), Email: s.Email, Name: s.Name}
	a.accounts[acc.ID] = acc
	ctx.Logger().Info("account created")
	return acc, nil
}

func (a *Accounts) Get(id string, ctx *apireg.Context) (Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.accounts[id]
	if !ok {
		return Account{}, apireg.NewError(apireg.CodeNotFound, "account not found").WithDetail("id", id)
	}
	return *acc, nil
}

// Ban marks an account as banned. Only the Admin class declares it.
func (a *Accounts) Ban(id string, reason string, ctx *apireg.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.accounts[id]
	if !ok {
		return apireg.NewError(apireg.CodeNotFound, "account not found").WithDetail("id", id)
	}
	acc.Banned = true
	ctx.Logger().Info("account banned")
	return nil
}

var idSchema = schema.Schema{"type": "string", "format": "uuid"}

var (
	controller = &Controller{apireg.NewBaseController(ControllerClass)}
	shared     = &store{accounts: make(map[string]*Account)}
	accounts   = newAccounts(AccountsClass, shared)
	admin      = newAccounts(AdminClass, shared)
)

func init() {
	apireg.MustRegister(ControllerClass, "apis", controller.Apis, apireg.Options{
		Params: []schema.Schema{
			{
				"type":       "object",
				"properties": map[string]any{"age": map[string]any{"type": "number", "minimum": 0}},
				"required":   []any{"age"},
			},
			{"type": "number"},
		},
	})

	apireg.MustRegister(BaseClass, "health", accounts.Health, apireg.Options{})

	apireg.MustRegister(AccountsClass, "signup", accounts.Signup, apireg.Options{
		Verb: apireg.VerbPost,
		Params: []schema.Schema{{
			"type":     "object",
			"required": []any{"email", "name"},
			"properties": map[string]any{
				"email": map[string]any{"type": "string"},
				"name":  map[string]any{"type": "string"},
			},
		}},
	})
	apireg.MustRegister(AccountsClass, "get", accounts.Get, apireg.Options{
		Params: []schema.Schema{idSchema},
	})

	apireg.MustRegister(AdminClass, "ban", admin.Ban, apireg.Options{
		Verb:   apireg.VerbDelete,
		Params: []schema.Schema{idSchema, {"type": "string", "maxLength": 200}},
	})
}

// Controllers returns every demo controller.
func Controllers() []apireg.Controller {
	return []apireg.Controller{controller, accounts, admin}
}
