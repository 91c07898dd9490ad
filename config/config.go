// Package config loads and validates the YAML policy file consumed by the
// validator, the engine compiler, and the mock server.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/x402dev/x402kit/audit"
	"github.com/x402dev/x402kit/pricing"
	"github.com/x402dev/x402kit/types"
)

var validate = validator.New()

// File is the full parsed policy file.
type File struct {
	Policies []types.PolicyRule `yaml:"policies"`
	Pricing  *PricingSection    `yaml:"pricing,omitempty"`
	Audit    *AuditSection      `yaml:"audit,omitempty"`
}

// PricingSection configures the pricing resolver.
type PricingSection struct {
	Amount      string            `yaml:"amount" validate:"required"`
	Currency    string            `yaml:"currency" validate:"required"`
	MemoPrefix  string            `yaml:"memo_prefix,omitempty"`
	PerResource map[string]string `yaml:"per_resource,omitempty"`
}

// AuditSection configures the decision audit trail.
type AuditSection struct {
	Enabled     bool   `yaml:"enabled"`
	Format      string `yaml:"format" validate:"omitempty,oneof=csv json"`
	Destination string `yaml:"destination,omitempty"`
}

// Load reads and validates a policy file. All configuration errors surface
// here, never at request time.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.KitError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("cannot read policy file %s: %v", path, err),
		}
	}
	return Parse(data)
}

// Parse decodes and validates policy file contents.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &types.KitError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("invalid YAML: %v", err),
		}
	}

	for i := range f.Policies {
		if err := f.Policies[i].Validate(); err != nil {
			return nil, &types.KitError{
				Code:    types.ErrConfig,
				Message: fmt.Sprintf("policy %d: %v", i, err),
			}
		}
	}

	if f.Pricing != nil {
		if err := validate.Struct(f.Pricing); err != nil {
			return nil, &types.KitError{
				Code:    types.ErrConfig,
				Message: fmt.Sprintf("pricing section: %v", err),
			}
		}
		if _, err := f.Pricing.Resolver(); err != nil {
			return nil, err
		}
	}

	if f.Audit != nil {
		if err := validate.Struct(f.Audit); err != nil {
			return nil, &types.KitError{
				Code:    types.ErrConfig,
				Message: fmt.Sprintf("audit section: %v", err),
			}
		}
	}

	return &f, nil
}

// Resolver compiles the pricing section into a resolver. A nil section
// yields the 0.01 USDC default used by the mock server.
func (p *PricingSection) Resolver() (*pricing.Resolver, error) {
	if p == nil {
		return pricing.NewResolver(pricing.Config{
			Default:  types.MustAmount("0.01"),
			Currency: types.CurrencyUSDC,
		}), nil
	}

	amount, err := types.AmountFromString(p.Amount)
	if err != nil {
		return nil, &types.KitError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("pricing amount: %v", err),
		}
	}
	currency, err := types.ParseCurrency(p.Currency)
	if err != nil {
		return nil, &types.KitError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("pricing currency: %v", err),
		}
	}

	perResource := make(map[string]types.Amount, len(p.PerResource))
	for key, raw := range p.PerResource {
		a, err := types.AmountFromString(raw)
		if err != nil {
			return nil, &types.KitError{
				Code:    types.ErrConfig,
				Message: fmt.Sprintf("pricing for %s: %v", key, err),
			}
		}
		perResource[key] = a
	}

	return pricing.NewResolver(pricing.Config{
		Default:     amount,
		Currency:    currency,
		MemoPrefix:  p.MemoPrefix,
		PerResource: perResource,
	}), nil
}

// Trail opens the audit trail this section describes. An empty format means
// CSV.
func (a *AuditSection) Trail() (*audit.Trail, error) {
	format := audit.Format(a.Format)
	if format == "" {
		format = audit.FormatCSV
	}
	return audit.Open(format, a.Destination)
}
