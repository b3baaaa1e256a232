package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// ID is the opaque key a wallet is stored under.
type ID string

// Wallet is a virtual spendable balance owned by a single user. The balance
// is mutated only through the Service debit/credit operations and never goes
// negative.
type Wallet struct {
	ID           ID
	OwnerID      string
	Address      string
	CurrencyType string
	Amount       decimal.Decimal
	CreatedAt    time.Time
}
