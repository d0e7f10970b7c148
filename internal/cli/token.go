package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"quiz-attempt-service/internal/auth"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
)

type tokenOutput struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// NewTokenCmd mints tokens with the configured secrets. Real deployments get
// tokens from the identity provider; this is for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var id domain.Identity
	var role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access and refresh token for a test identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			id.Role = domain.Role(role)
			switch id.Role {
			case domain.RoleStudent, domain.RoleOrganization, domain.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			if id.ID == "" {
				return fmt.Errorf("--id is required")
			}
			issuer, err := newIssuer(cfg)
			if err != nil {
				return err
			}
			access, err := issuer.IssueAccess(id)
			if err != nil {
				return err
			}
			refresh, err := issuer.IssueRefresh(id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			now := time.Now()
			return enc.Encode(tokenOutput{
				AccessToken:      access,
				AccessExpiresAt:  now.Add(issuer.AccessTTL()),
				RefreshToken:     refresh,
				RefreshExpiresAt: now.Add(issuer.RefreshTTL()),
			})
		},
	}
	cmd.Flags().StringVar(&id.ID, "id", "", "user id (token subject)")
	cmd.Flags().StringVar(&id.Email, "email", "", "user email, matched against quiz allow-lists")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleStudent), "student, organization or admin")
	return cmd
}

func newIssuer(cfg config.Config) (*auth.Issuer, error) {
	return auth.NewIssuer(
		cfg.Auth.AccessSecret,
		cfg.Auth.RefreshSecret,
		config.TTLDuration(cfg.Auth.AccessTTL, 15*time.Minute),
		config.TTLDuration(cfg.Auth.RefreshTTL, 7*24*time.Hour),
	)
}
