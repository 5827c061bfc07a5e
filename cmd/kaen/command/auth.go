package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/kaen/internal/apiclient"
	"github.com/emilythestrangee/kaen/internal/models"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		c := apiclient.New(apiURL)
		resp, err := c.Login(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if err := saveSession(newSession(apiURL, resp.Token, resp.User)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Signed in as %s\n", resp.User.Name())
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req models.RegisterRequest
		req.Username, _ = cmd.Flags().GetString("username")
		req.Email, _ = cmd.Flags().GetString("email")
		req.Password, _ = cmd.Flags().GetString("password")
		req.DisplayName, _ = cmd.Flags().GetString("display-name")

		c := apiclient.New(apiURL)
		resp, err := c.Register(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}
		if err := saveSession(newSession(apiURL, resp.Token, resp.User)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Account created, signed in as %s\n", resp.User.Name())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := deleteSession(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who the saved session belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, viewer, err := client()
		if err != nil {
			return err
		}
		if viewer == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
			return nil
		}
		me, err := c.Me(cmd.Context())
		if err != nil {
			return fmt.Errorf("session check failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (@%s, id %d) on %s\n", me.Name(), me.Username, me.ID, apiURL)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringP("email", "e", "", "account email")
	loginCmd.Flags().StringP("password", "p", "", "account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	registerCmd.Flags().StringP("username", "u", "", "username")
	registerCmd.Flags().StringP("email", "e", "", "email address")
	registerCmd.Flags().StringP("password", "p", "", "password")
	registerCmd.Flags().String("display-name", "", "name shown next to your comments")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}
