package cmd

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aadithya-v/bifrost"
)

var (
	issueIdentity string
	issueIP       string
	issueValidity time.Duration
	issueTarget   string
)

// issueOutput is what the issue command prints.
type issueOutput struct {
	Token     string `json:"token"`
	TS        int64  `json:"ts"`
	U         string `json:"u"`
	Exp       int64  `json:"exp"`
	ExpiresAt string `json:"expires_at"`
	URL       string `json:"url,omitempty"`
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint a token offline with HOTSPOT_SECRET",
	Long: `Mint a token for an identity and client IP without going through the
issuer endpoint. Useful for provisioning fixed devices and for debugging.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("HOTSPOT_SECRET")
		if secret == "" {
			return bifrost.ErrSecretNotConfigured
		}
		if issueIdentity == "" || issueIP == "" {
			return errors.New("both --identity and --ip are required")
		}

		claim := bifrost.Claim{
			Identity:   issueIdentity,
			ClientIP:   issueIP,
			IssuedAt:   time.Now().UnixMilli(),
			ValidityMS: issueValidity.Milliseconds(),
		}
		out := issueOutput{
			Token:     bifrost.Sign([]byte(secret), claim),
			TS:        claim.IssuedAt,
			U:         claim.Identity,
			Exp:       claim.ValidityMS,
			ExpiresAt: claim.ExpiresAt().UTC().Format(time.RFC3339),
		}

		if issueTarget != "" {
			u, err := url.Parse(issueTarget)
			if err != nil {
				return err
			}
			q := u.Query()
			q.Set("token", out.Token)
			q.Set("ts", strconv.FormatInt(out.TS, 10))
			q.Set("u", out.U)
			q.Set("exp", strconv.FormatInt(out.Exp, 10))
			u.RawQuery = q.Encode()
			out.URL = u.String()
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(issueCmd)
	issueCmd.Flags().StringVar(&issueIdentity, "identity", "", "Identity the token is bound to")
	issueCmd.Flags().StringVar(&issueIP, "ip", "", "Client IP the token is bound to")
	issueCmd.Flags().DurationVar(&issueValidity, "validity", time.Hour, "Token validity")
	issueCmd.Flags().StringVar(&issueTarget, "target", "", "Target URL to append the token parameters to")
}
