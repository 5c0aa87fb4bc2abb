package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/noah-isme/primes-api/internal/service"
)

func newHashCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-code",
		Short: "Hash an admin code for ADMIN_CODE_HASH",
		Long: `Prompts for the admin code twice without echo and prints its bcrypt hash.
When stdin is not a terminal the code is read from its first line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readAdminCode(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			hash, err := service.HashAdminCode(code)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ADMIN_CODE_HASH=%s\n", hash)
			return nil
		},
	}
}

func readAdminCode(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Admin code: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read admin code: %w", err)
		}
		fmt.Fprint(prompt, "Confirm:    ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read admin code: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("admin codes do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read admin code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", errors.New("admin code is empty")
	}
	return code, nil
}
