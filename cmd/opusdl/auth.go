package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"opusdl/pkg/auth"
	"opusdl/pkg/bilibili"
	"opusdl/pkg/logger"
	"opusdl/pkg/ui"
)

var (
	cookieHeader string
	loginName    string
	logoutAll    bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage bilibili session cookies",
	Long: `Manage stored bilibili session cookies.

Cookies are stored in:
  - the system keychain (when available)
  - an encrypted cookie jar (Argon2id, XChaCha20-Poly1305)
and read from OPUSDL_SESSDATA / OPUSDL_BILI_JCT / OPUSDL_DEDE_USER_ID.

Never share your SESSDATA cookie!`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store session cookies",
	Long: `Store bilibili session cookies for later runs.

Paste the whole Cookie request header with --cookie, or answer the prompts.
Cookie values are read without echo when stdin is a terminal.`,
	Example: `  # Interactive
  opusdl auth login

  # From a copied request header
  opusdl auth login --cookie "SESSDATA=...; bili_jct=...; DedeUserID=12345"`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored cookies",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked cookies",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user id the current cookies belong to",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to copy the cookies out of a browser",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowCookieExtractionGuide(cmd.OutOrStdout())
	},
}

func init() {
	loginCmd.Flags().StringVar(&cookieHeader, "cookie", "", "Cookie header copied from the browser")
	loginCmd.Flags().StringVar(&loginName, "name", "", "account name (default: DedeUserID)")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")

	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd, whoamiCmd, guideCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if cookieHeader != "" {
		account, err = auth.ParseCookieHeader(cookieHeader)
		if err != nil {
			return err
		}
	} else {
		account, err = promptAccount(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}

	if loginName != "" {
		account.Name = loginName
	}
	if account.Name == "" {
		account.Name = "default"
	}

	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	masked := auth.SanitizeAccount(account)
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", account.Name))
	ui.PrintInfo("SESSDATA", masked.SessData)
	fmt.Fprintln(cmd.OutOrStdout(), "\nCheck the session with 'opusdl auth whoami'.")
	return nil
}

// promptAccount asks for each cookie. Secret values are read without echo
// when in is a terminal.
func promptAccount(in io.Reader, out io.Writer) (*auth.Account, error) {
	auth.ShowQuickExtractGuide(out)
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)
	account := &auth.Account{}

	var err error
	fmt.Fprint(out, "SESSDATA: ")
	if account.SessData, err = readSecret(in, reader, out); err != nil {
		return nil, err
	}
	if account.SessData == "" {
		return nil, errors.New("SESSDATA is required")
	}

	fmt.Fprint(out, "bili_jct (optional): ")
	if account.BiliJct, err = readSecret(in, reader, out); err != nil {
		return nil, err
	}

	fmt.Fprint(out, "DedeUserID (optional): ")
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	account.DedeUserID = strings.TrimSpace(line)
	account.Name = account.DedeUserID

	return account, nil
}

func readSecret(in io.Reader, reader *bufio.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	}

	name := accountName
	if len(args) == 1 {
		name = args[0]
	}
	if name == "" {
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		switch len(accounts) {
		case 0:
			return auth.ErrCredentialsNotFound
		case 1:
			name = accounts[0].Name
		default:
			return errors.New("several accounts stored, name the one to remove or pass --all")
		}
	}

	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	ui.PrintSuccess("Account removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'opusdl auth login' to add one")
		return nil
	}

	out := cmd.OutOrStdout()
	for i, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Fprintf(out, "%d. %s\n", i+1, masked.Name)
		fmt.Fprintf(out, "   SESSDATA:   %s\n", masked.SessData)
		if masked.BiliJct != "" {
			fmt.Fprintf(out, "   bili_jct:   %s\n", masked.BiliJct)
		}
		if masked.DedeUserID != "" {
			fmt.Fprintf(out, "   DedeUserID: %s\n", masked.DedeUserID)
		}
		fmt.Fprintf(out, "   Modified:   %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Bilibili.SessData == "" {
		return errors.New("no SESSDATA cookie configured, run 'opusdl auth login'")
	}

	client := bilibili.NewClientFromConfig(cfg, logger.NewNopLogger())
	api := bilibili.NewAPI(client)

	uid, err := api.LoginUserID(context.Background())
	if err != nil {
		return err
	}
	ui.PrintInfo("Logged in as", uid)
	fmt.Fprintf(cmd.OutOrStdout(), "favorites: https://space.bilibili.com/%s/favlist?fid=opus\n", uid)
	return nil
}
