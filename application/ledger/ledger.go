// Package ledger formats the two legs of a balance adjustment.
//
// The credit leg renders a balance lookup query for the host to execute and
// then folds the host's query result into a new balance. The debit leg only
// produces a description; it performs no lookup or arithmetic.
//
// The guest never touches ledger storage. It formats query strings and
// parses result blobs; the host runs the query.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/buger/jsonparser"

	"github.com/reglet-dev/ledger-guest/domain/errors"
)

// creditQueryTemplate is the fixed balance lookup. Only the account varies.
const creditQueryTemplate = `PREFIX ex: <http://example.org/>
        SELECT ?balance
        WHERE {
          ex:{{.account}} ex:hasBalance ?balance .
        }`

// Formatter builds and interprets ledger leg strings.
type Formatter struct {
	logger *slog.Logger
	query  *template.Template
}

// NewFormatter creates a Formatter. A nil logger discards diagnostics.
func NewFormatter(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Formatter{
		logger: logger,
		// Fail fast on a missing key rather than rendering "<no value>".
		query: template.Must(template.New("credit_query").Option("missingkey=error").Parse(creditQueryTemplate)),
	}
}

// BuildCreditQuery renders the balance lookup for account. The identifier is
// validated against the account charset first and substituted unescaped.
func (f *Formatter) BuildCreditQuery(account string) (string, error) {
	if err := ValidateAccount(account); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := f.query.Execute(&buf, map[string]string{"account": account}); err != nil {
		return "", fmt.Errorf("failed to execute credit query template: %w", err)
	}
	return buf.String(), nil
}

// ExecuteCreditLeg validates the credit leg and returns its balance query.
// The amount is only validated here; it is applied later by
// ApplyCreditResult once the host has run the query.
func (f *Formatter) ExecuteCreditLeg(amount, account string) (string, error) {
	f.logger.Info("Executing credit leg", "amount", amount, "account", account)

	leg, err := ParseLeg(amount, account)
	if err != nil {
		f.logger.Warn("Rejected credit leg", "error", err)
		return "", err
	}
	return f.BuildCreditQuery(leg.Account)
}

// ApplyCreditResult reads results[0].balance from a query result blob, adds
// amount using decimal fixed-point arithmetic and returns a summary.
//
// Checks run in this order: the blob must be valid JSON (ParseError), it
// must carry a decimal string at results[0].balance (MissingBalanceError),
// and amount must be decimal (InvalidAmountError).
func (f *Formatter) ApplyCreditResult(result, amount string) (string, error) {
	f.logger.Info("Processing result", "result", result, "amount", amount)

	data := []byte(result)
	if err := json.Unmarshal(data, new(json.RawMessage)); err != nil {
		err = &errors.ParseError{What: "result JSON", Err: err}
		f.logger.Warn("Rejected credit result", "error", err)
		return "", err
	}

	raw, err := firstBalance(data)
	if err != nil {
		err = &errors.MissingBalanceError{Err: err}
		f.logger.Warn("Rejected credit result", "error", err)
		return "", err
	}
	balance, err := ParseAmount(raw)
	if err != nil {
		err = &errors.MissingBalanceError{Err: err}
		f.logger.Warn("Rejected credit result", "error", err)
		return "", err
	}
	f.logger.Info("Extracted balance", "balance", balance.String())

	credit, err := ParseAmount(amount)
	if err != nil {
		f.logger.Warn("Rejected credit amount", "error", err)
		return "", err
	}

	summary := fmt.Sprintf("Current balance: %s. After credit of %s, new balance: %s",
		balance.String(), credit.String(), balance.Add(credit).String())
	f.logger.Info(summary)
	return summary, nil
}

// BuildDebitLeg describes a debit. Both inputs are validated but no balance
// is queried or computed.
func (f *Formatter) BuildDebitLeg(amount, account string) (string, error) {
	f.logger.Info("Executing debit leg", "amount", amount, "account", account)

	if _, err := ParseLeg(amount, account); err != nil {
		f.logger.Warn("Rejected debit leg", "error", err)
		return "", err
	}

	description := fmt.Sprintf("Debiting %s from account %s", amount, account)
	f.logger.Info(description)
	return description, nil
}

// firstBalance returns results[0].balance. results must be an array:
// jsonparser would otherwise match "[0]" as an object key.
func firstBalance(data []byte) (string, error) {
	results, dataType, _, err := jsonparser.Get(data, "results")
	if err != nil {
		return "", err
	}
	if dataType != jsonparser.Array {
		return "", fmt.Errorf("results is %s, not an array", dataType)
	}
	return jsonparser.GetString(results, "[0]", "balance")
}
