package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/mfenderov/ledgerkit/internal/storage"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create a user",
	Long: "Create a user. Local users need --password; LDAP users must not have one.\n\n" +
		"Example:\n" +
		"  ledger user add ada@example.com --password s3cret\n" +
		"  ledger user add grace@example.com --auth-type ldap",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		authType, err := storage.ParseAuthType(mustString(cmd, "auth-type"))
		if err != nil {
			return err
		}

		store, err := getMigratedStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.CreateUser(cmd.Context(), storage.NewUser{
			Email:    args[0],
			Password: mustString(cmd, "password"),
			AuthType: authType,
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓")+" Created user "+nameStyle.Render(user.Email)+" "+typeStyle.Render("("+string(user.AuthType)+")"))
		return nil
	},
}

var userGetCmd = &cobra.Command{
	Use:   "get <email>",
	Short: "Show a user and their accounts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getMigratedStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUser(cmd.Context(), args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("user %q: %w", args[0], err)
		}
		if err != nil {
			return err
		}
		accounts, err := store.ListAccounts(cmd.Context(), user.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printUser(out, user)
		for _, a := range accounts {
			printAccount(out, &a)
		}
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getMigratedStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := store.ListUsers(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(users) == 0 {
			fmt.Fprintln(out, dimStyle.Render("No users found"))
			return nil
		}
		fmt.Fprintln(out, titleStyle.Render("Users ("+strconv.Itoa(len(users))+")"))
		for i := range users {
			printUser(out, &users[i])
		}
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete a user and their accounts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getMigratedStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteUser(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("user %q: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓")+" Deleted user "+nameStyle.Render(args[0]))
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add <email> <name>",
	Short: "Create an account for a user",
	Long: "Create an account for a user.\n\n" +
		"Example:\n" +
		"  ledger account add ada@example.com checking --balance 12500\n" +
		"  ledger account add ada@example.com escrow --balance-type off_balance_sheet",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		balanceType, err := storage.ParseBalanceType(mustString(cmd, "balance-type"))
		if err != nil {
			return err
		}
		balance, _ := cmd.Flags().GetInt64("balance")

		store, err := getMigratedStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUser(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("user %q: %w", args[0], err)
		}
		account, err := store.CreateAccount(cmd.Context(), storage.NewAccount{
			UserID:       user.ID,
			Name:         args[1],
			BalanceCents: balance,
			BalanceType:  balanceType,
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓")+" Created account "+nameStyle.Render(account.Name)+" "+typeStyle.Render("("+string(account.BalanceType)+")"))
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list <email>",
	Short: "List a user's accounts and their balance sheet total",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getMigratedStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUser(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("user %q: %w", args[0], err)
		}
		accounts, err := store.ListAccounts(cmd.Context(), user.ID)
		if err != nil {
			return err
		}
		total, err := store.BalanceSheetTotal(cmd.Context(), user.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render("Accounts ("+strconv.Itoa(len(accounts))+")"))
		for i := range accounts {
			printAccount(out, &accounts[i])
		}
		fmt.Fprintln(out, dimStyle.Render("Balance sheet total:")+" "+formatCents(total))
		return nil
	},
}

func printUser(w io.Writer, u *storage.User) {
	fmt.Fprintln(w, "  "+nameStyle.Render(u.Email)+" "+typeStyle.Render("("+string(u.AuthType)+")")+" "+
		dimStyle.Render("since "+u.CreatedAt.Local().Format("2006-01-02")))
}

func printAccount(w io.Writer, a *storage.Account) {
	fmt.Fprintln(w, "    • "+a.Name+" "+formatCents(a.BalanceCents)+" "+typeStyle.Render("("+string(a.BalanceType)+")"))
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	userAddCmd.Flags().String("password", "", "password for local users")
	userAddCmd.Flags().String("auth-type", string(storage.AuthLocal), "ldap or local")

	accountAddCmd.Flags().Int64("balance", 0, "opening balance in cents")
	accountAddCmd.Flags().String("balance-type", string(storage.OnBalanceSheet), "on_balance_sheet or off_balance_sheet")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(accountCmd)
}
