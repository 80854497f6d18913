package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mfenderov/ledgerkit/internal/apiclient"
	"github.com/mfenderov/ledgerkit/internal/credstore"
	"github.com/spf13/cobra"
)

type loginResponse struct {
	Token string `json:"token"`
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store the API session token",
	Long: "Store the API session token under \"" + credstore.TokenKey + "\".\n\n" +
		"With an email, the password is exchanged for a token at the API's login\n" +
		"endpoint. Otherwise the token is taken from --token or the first line of stdin.\n\n" +
		"Example:\n" +
		"  ledger login ada@example.com --password s3cret\n" +
		"  ledger login --token eyJhbGciOi...",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := getCredentials()
		if err != nil {
			return err
		}

		var token string
		switch {
		case len(args) == 1:
			token, err = exchangePassword(cmd, args[0])
		case mustString(cmd, "token") != "":
			token = mustString(cmd, "token")
		default:
			token, err = readLine(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		if token == "" {
			return errors.New("no token given")
		}

		if err := creds.Set(cmd.Context(), credstore.TokenKey, token); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓")+" Logged in")
		return nil
	},
}

func exchangePassword(cmd *cobra.Command, email string) (string, error) {
	// The login endpoint must not see a stale token.
	client, err := apiclient.New(cfg.APIURL, credstore.Static(nil), apiclient.WithLogger(logger))
	if err != nil {
		return "", err
	}
	var resp loginResponse
	err = client.PostJSON(cmd.Context(), mustString(cmd, "endpoint"), map[string]string{
		"email":    email,
		"password": mustString(cmd, "password"),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	return resp.Token, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := getCredentials()
		if err != nil {
			return err
		}
		if err := creds.Delete(cmd.Context(), credstore.TokenKey); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓")+" Logged out")
		return nil
	},
}

var apiCmd = &cobra.Command{
	Use:   "api <method> <path>",
	Short: "Send an authorized request to the API",
	Long: "Send a request to the API with the stored session token attached.\n" +
		"The response body is written to stdout.\n\n" +
		"Example:\n" +
		"  ledger api GET /accounts\n" +
		"  ledger api POST /accounts --data '{\"name\":\"checking\"}'",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getAPIClient()
		if err != nil {
			return err
		}

		var body io.Reader
		data := mustString(cmd, "data")
		if data != "" {
			body = strings.NewReader(data)
		}
		req, err := client.NewRequest(cmd.Context(), strings.ToUpper(args[0]), args[1], body)
		if err != nil {
			return err
		}
		if data != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		logger.Debug("Response", "status", resp.Status)
		if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().String("token", "", "token to store")
	loginCmd.Flags().String("password", "", "password to exchange for a token")
	loginCmd.Flags().String("endpoint", "/auth/login", "login endpoint, relative to the API base URL")

	apiCmd.Flags().StringP("data", "d", "", "JSON request body")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(apiCmd)
}
