package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator account helpers",
}

var adminHashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long: `Hashes the administrator password for the ADMIN_PASSWORD_HASH setting.
The password is read from the argument or, when omitted, from the first line
of standard input.`,
	Example: `  face-attendance admin hash-password
  echo -n secret | face-attendance admin hash-password --cost 12`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdminHashPassword,
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminHashPasswordCmd)

	adminHashPasswordCmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
}

func runAdminHashPassword(cmd *cobra.Command, args []string) error {
	cost := mustGetInt(cmd, "cost")
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(hash))
	return nil
}
