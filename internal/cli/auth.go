package cli

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/mcoot/mysphere/internal/api/request"
	"github.com/mcoot/mysphere/internal/services/auth"
)

func newLoginCmd() *cobra.Command {
	var keyHex string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a wallet private key",
		Long: `Request a sign-in challenge, sign it locally with the wallet key and
exchange the signature for a session token. The key never leaves this machine.

The key may be given with --key or the SPHERECTL_KEY environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyHex == "" {
				keyHex = os.Getenv("SPHERECTL_KEY")
			}
			if keyHex == "" {
				return fmt.Errorf("--key or SPHERECTL_KEY is required")
			}

			key, err := parseKey(keyHex)
			if err != nil {
				return err
			}

			result, err := login(key)
			if err != nil {
				return err
			}

			if err := cfg.SaveToken(result.SessionToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyHex, "key", "", "Hex-encoded private key (env: SPHERECTL_KEY)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Token != "" {
				// The local token is cleared even if the server already forgot it
				if err := client.Post("/api/v1/auth/logout", nil, nil); err != nil && cfg.Verbose {
					fmt.Fprintf(os.Stderr, "logout: %v\n", err)
				}
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to clear token: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Logged out")
			return nil
		},
	}
}

func parseKey(keyHex string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// login runs the challenge/verify exchange for key
func login(key *ecdsa.PrivateKey) (*AuthResult, error) {
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	var challenge Challenge
	if err := client.Post("/api/v1/auth/challenge", request.ChallengeRequest{Address: address}, &challenge); err != nil {
		return nil, err
	}

	signature, err := auth.SignMessage(key, challenge.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}

	var result AuthResult
	req := request.VerifyRequest{Address: address, Signature: signature}
	if err := client.Post("/api/v1/auth/verify", req, &result); err != nil {
		return nil, err
	}
	client.SetToken(result.SessionToken)
	return &result, nil
}
