package ledger

import (
	stdErrors "errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/reglet-dev/ledger-guest/domain/entities"
	"github.com/reglet-dev/ledger-guest/domain/errors"
)

// accountPattern is the charset an account identifier may use. It is a safe
// subset of a SPARQL prefixed-name local part, so substitution into the
// query template cannot change the query's structure.
var accountPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// validate is a package-level singleton for better performance.
// Creating a new validator on each call is expensive; reusing is recommended.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("account", func(fl validator.FieldLevel) bool {
		return accountPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("ledger: register account validation: %v", err))
	}
	return v
}

// Bounds on amounts and balances. Exponent notation is accepted, but the
// expanded value must stay within these digit counts so that formatting a
// sum stays small.
const (
	MaxAmountLength  = 64
	MaxIntegerDigits = 38
	MaxScale         = 38
)

// ParseAmount parses a decimal amount such as "25.25", "-3" or "1.5e3".
func ParseAmount(amount string) (decimal.Decimal, error) {
	if len(amount) > MaxAmountLength {
		return decimal.Decimal{}, &errors.InvalidAmountError{
			Amount: amount[:MaxAmountLength] + "...",
			Err:    fmt.Errorf("longer than %d bytes", MaxAmountLength),
		}
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, &errors.InvalidAmountError{Amount: amount, Err: err}
	}

	exp := int(d.Exponent())
	if exp < -MaxScale {
		return decimal.Decimal{}, &errors.InvalidAmountError{
			Amount: amount,
			Err:    fmt.Errorf("more than %d fractional digits", MaxScale),
		}
	}
	if d.NumDigits()+exp > MaxIntegerDigits {
		return decimal.Decimal{}, &errors.InvalidAmountError{
			Amount: amount,
			Err:    fmt.Errorf("more than %d integer digits", MaxIntegerDigits),
		}
	}
	return d, nil
}

// ValidateAccount checks an identifier before it is substituted into a query.
func ValidateAccount(account string) error {
	return accountError(account, validate.Var(account, "required,account"))
}

// ParseLeg builds a validated LedgerLeg from its boundary strings.
func ParseLeg(amount, account string) (entities.LedgerLeg, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return entities.LedgerLeg{}, err
	}
	leg := entities.LedgerLeg{Amount: d, Account: account}
	if err := accountError(account, validate.Struct(leg)); err != nil {
		return entities.LedgerLeg{}, err
	}
	return leg, nil
}

func accountError(account string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stdErrors.As(err, &verrs) && len(verrs) > 0 {
		err = fmt.Errorf("failed %q rule, allowed pattern is %s", verrs[0].Tag(), accountPattern)
	}
	return &errors.InvalidAccountError{Account: account, Err: err}
}
