package migrations

import (
	"context"
	"fmt"

	"github.com/mfenderov/ledgerkit/internal/schema"
)

func init() {
	register(4, "add account balance type", upAddAccountBalanceType, downAddAccountBalanceType)
}

// AccountBalanceTypeEnum names the enumerated type backing accounts.balance_type.
const AccountBalanceTypeEnum = "enum_accounts_balance_type"

var balanceTypeColumn = schema.Column{
	Table:   "accounts",
	Name:    "balance_type",
	Default: schema.Literal("on_balance_sheet"),
	Enum:    &schema.Enum{Name: AccountBalanceTypeEnum, Values: []string{"on_balance_sheet", "off_balance_sheet"}},
}

const backfillBalanceType = `UPDATE accounts SET balance_type = 'on_balance_sheet' WHERE balance_type IS NULL`

func upAddAccountBalanceType(ctx context.Context, ed schema.Editor, opts Options) error {
	logger := opts.logger()
	if err := ed.AddColumn(ctx, balanceTypeColumn); err != nil {
		return err
	}
	if opts.SkipBackfill {
		logger.Debug("Skipping backfill", "table", "accounts", "column", "balance_type")
		return nil
	}

	// The column default already fills existing rows, so this should never
	// touch anything.
	res, err := ed.Exec(ctx, backfillBalanceType)
	if err != nil {
		return fmt.Errorf("backfill accounts.balance_type: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logger.Warn("Backfill updated rows the column default should have covered",
			"table", "accounts", "column", "balance_type", "rows", n)
	}
	return nil
}

func downAddAccountBalanceType(ctx context.Context, ed schema.Editor, _ Options) error {
	if err := ed.RemoveColumn(ctx, balanceTypeColumn.Table, balanceTypeColumn.Name); err != nil {
		return err
	}
	return ed.DropEnum(ctx, AccountBalanceTypeEnum)
}
