package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// UserOptions holds flags for the user commands.
type UserOptions struct {
	*RootOptions
	Password    string
	NewPassword string
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long: `Register accounts, check credentials and change passwords.

Passwords not given with --password are read from standard input, one per
line.`,
	}
	cmd.PersistentFlags().StringVarP(&opts.Password, "password", "p", "", "password (read from stdin when empty)")

	register := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				in := bufio.NewReader(cmd.InOrStdin())
				password, err := secret(in, opts.Password)
				if err != nil {
					return err
				}
				if err := e.accounts.Register(ctx, args[0], password); err != nil {
					return err
				}
				return e.out.Result(map[string]string{"username": args[0]}, func(w io.Writer) error {
					fmt.Fprintf(w, "Konto %q utworzone.\n", args[0])
					return nil
				})
			})
		},
	}

	login := &cobra.Command{
		Use:   "login <username>",
		Short: "Check a username and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				in := bufio.NewReader(cmd.InOrStdin())
				password, err := secret(in, opts.Password)
				if err != nil {
					return err
				}
				sess, err := e.accounts.Login(ctx, args[0], password)
				if err != nil {
					return err
				}
				return e.out.Result(sess, func(w io.Writer) error {
					fmt.Fprintf(w, "Zalogowano jako %s.\n", sess.Username)
					return nil
				})
			})
		},
	}

	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change a password",
		Long: `Change the password of an account. The current password is checked
first; the new one must have at least 8 characters.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				in := bufio.NewReader(cmd.InOrStdin())
				current, err := secret(in, opts.Password)
				if err != nil {
					return err
				}
				next, err := secret(in, opts.NewPassword)
				if err != nil {
					return err
				}
				if _, err := e.accounts.Login(ctx, args[0], current); err != nil {
					return err
				}
				if err := e.accounts.ChangePassword(ctx, args[0], next); err != nil {
					return err
				}
				return e.out.Result(map[string]string{"username": args[0]}, func(w io.Writer) error {
					fmt.Fprintln(w, "Hasło zostało zmienione.")
					return nil
				})
			})
		},
	}
	passwd.Flags().StringVar(&opts.NewPassword, "new-password", "", "new password (read from stdin when empty)")

	cmd.AddCommand(register, login, passwd)
	return cmd
}

// secret returns flagValue, or the next line of in when it is empty.
func secret(in *bufio.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
