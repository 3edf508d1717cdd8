package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nas-ai/vaultcrypt/internal/apistate"
	"github.com/nas-ai/vaultcrypt/internal/appdata"
	"github.com/nas-ai/vaultcrypt/internal/bytesbuf"
	"github.com/nas-ai/vaultcrypt/internal/chainhash"
	"github.com/nas-ai/vaultcrypt/internal/vaulterr"
)

// defaultVerifyTimeout bounds how long the CLI waits for verify_password
// before treating the attempt as timed out (§4.9 step 4).
const defaultVerifyTimeout = 2 * time.Second

// exitCode maps the §6 contract (0 success, 1 user-visible failure, 2 usage
// error) onto the vaulterr Kind an operation failed with: argument/flag
// problems are usage errors, everything else the core rejects is a
// user-visible failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if vaulterr.Is(err, vaulterr.ArgumentInvalid) || vaulterr.Is(err, vaulterr.EmptyFilePath) {
		return 2
	}
	return 1
}

// defaultDir resolves the encryption-files directory from the
// VAULTCRYPT_DIR environment variable (§6's "single variable designating
// the default encryption-files directory"), falling back to the current
// directory.
func defaultDir() string {
	if d := os.Getenv("VAULTCRYPT_DIR"); d != "" {
		return d
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func run(args []string) int {
	var dir string

	root := &cobra.Command{
		Use:           "vaultcrypt",
		Short:         "Password-based file encryption",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", defaultDir(), "encryption-files directory")

	root.AddCommand(newListCmd(&dir), newCreateCmd(&dir), newEncryptCmd(&dir), newDecryptCmd(&dir))
	root.SetArgs(args)

	cmdErr := root.Execute()
	if cmdErr != nil {
		fmt.Fprintln(os.Stderr, cmdErr)
	}
	return exitCode(unwrapCobra(cmdErr))
}

// unwrapCobra classifies cobra's own usage errors (unknown flag, missing
// arg) as ArgumentInvalid so they hit exit code 2 even though cobra itself
// doesn't speak vaulterr. A vaulterr.Error from the core passes through
// unchanged; exitCode inspects its Kind directly.
func unwrapCobra(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*vaulterr.Error); ok {
		return err
	}
	return vaulterr.New(vaulterr.ArgumentInvalid, err.Error())
}

func newListCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vault files in the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			api := apistate.New(*dir)
			names, err := api.ListFiles()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newCreateCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty vault file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := apistate.New(*dir)
			return api.CreateFile(args[0])
		},
	}
}

func newEncryptCmd(dir *string) *cobra.Command {
	var password string
	var inputPath string

	cmd := &cobra.Command{
		Use:   "encrypt NAME",
		Short: "Encrypt stdin (or --in) into a vault file, setting its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return vaulterr.New(vaulterr.ArgumentInvalid, "--password is required")
			}
			plaintext, err := readInput(cmd, inputPath)
			if err != nil {
				return err
			}

			settings, err := appdata.LoadSettings()
			if err != nil {
				return err
			}

			api := apistate.New(*dir)
			name := args[0]
			empty, err := fileIsNewOrEmpty(api, name)
			if err != nil {
				return err
			}
			if empty {
				if err := api.CreateFile(name); err != nil && !vaulterr.Is(err, vaulterr.FileExists) {
					return err
				}
			}
			if err := api.SelectFile(name); err != nil {
				return err
			}

			hs := apistate.HeaderSettings{
				HashMode:   settings.DefaultHashMode,
				FileMode:   1,
				ChainHash1: chainhash.New(settings.ChainHash1Mode, settings.ChainHash1Iterations, chainhash.NewData(chainhash.Format{})),
				ChainHash2: chainhash.New(settings.ChainHash2Mode, settings.ChainHash2Iterations, chainhash.NewData(chainhash.Format{})),
			}
			if err := api.CreateDataHeader(password, hs); err != nil {
				return err
			}
			if err := api.SetFileData(bytesbuf.FromBytes(plaintext)); err != nil {
				return err
			}
			if err := api.GetEncryptedData(); err != nil {
				return err
			}
			return api.WriteToFile()
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "vault password")
	cmd.Flags().StringVar(&inputPath, "in", "", "read plaintext from this path instead of stdin")
	return cmd
}

func newDecryptCmd(dir *string) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "decrypt NAME",
		Short: "Decrypt a vault file to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return vaulterr.New(vaulterr.ArgumentInvalid, "--password is required")
			}
			api := apistate.New(*dir)
			if err := api.SelectFile(args[0]); err != nil {
				return err
			}
			outcome, err := api.VerifyPassword(password, defaultVerifyTimeout)
			if err != nil {
				return err
			}
			if outcome.Status == vaulterr.TimedOut {
				return vaulterr.New(vaulterr.Timeout, "verify_password")
			}
			if err := api.GetDecryptedData(); err != nil {
				return err
			}
			data, err := api.GetFileData()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data.Bytes())
			return err
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "vault password")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func fileIsNewOrEmpty(api *apistate.API, name string) (bool, error) {
	names, err := api.ListFiles()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return false, nil
		}
	}
	return true, nil
}
