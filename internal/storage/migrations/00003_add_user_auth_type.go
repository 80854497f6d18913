package migrations

import (
	"context"

	"github.com/mfenderov/ledgerkit/internal/schema"
)

func init() {
	register(3, "add user auth type", upAddUserAuthType, downAddUserAuthType)
}

// UserAuthTypeEnum names the enumerated type backing users."authType".
const UserAuthTypeEnum = "enum_users_authType"

var authTypeColumn = schema.Column{
	Table:   "users",
	Name:    "authType",
	Default: schema.Literal("local"),
	Enum:    &schema.Enum{Name: UserAuthTypeEnum, Values: []string{"ldap", "local"}},
}

func passwordColumn(d schema.Dialect, nullable bool) schema.Column {
	return schema.Column{Table: "users", Name: "password", Type: textType(d, 255), Nullable: nullable}
}

// LDAP users authenticate elsewhere and carry no password.
func upAddUserAuthType(ctx context.Context, ed schema.Editor, _ Options) error {
	if err := ed.AddColumn(ctx, authTypeColumn); err != nil {
		return err
	}
	return ed.ChangeColumn(ctx, passwordColumn(ed.Dialect(), true))
}

// Restoring NOT NULL fails while any user has no password; the error aborts
// the revert.
func downAddUserAuthType(ctx context.Context, ed schema.Editor, opts Options) error {
	if err := ed.RemoveColumn(ctx, authTypeColumn.Table, authTypeColumn.Name); err != nil {
		return err
	}
	if err := ed.ChangeColumn(ctx, passwordColumn(ed.Dialect(), false)); err != nil {
		return err
	}
	if opts.Revert != RevertComplete {
		opts.logger().Debug("Keeping enum type", "enum", UserAuthTypeEnum, "policy", RevertAsAuthored)
		return nil
	}
	return ed.DropEnum(ctx, UserAuthTypeEnum)
}
