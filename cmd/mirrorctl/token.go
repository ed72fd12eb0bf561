package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func (c *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token",
		Long: `Token signs an HS256 JWT with the server's shared secret, read from
--jwt-secret or MIRRORCTL_JWT_SECRET. A zero --ttl mints a token that
never expires.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			token, err := mintToken(
				c.v.GetString("jwt-secret"),
				c.v.GetString("subject"),
				c.v.GetDuration("ttl"),
				time.Now(),
			)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, token)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "token subject, recorded in request logs")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().String("jwt-secret", "", "HS256 signing secret")
	c.bindFlags(cmd, "subject", "ttl", "jwt-secret")
	return cmd
}

func mintToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret required (--jwt-secret or MIRRORCTL_JWT_SECRET)")
	}
	if subject == "" {
		return "", fmt.Errorf("--subject required")
	}
	if ttl < 0 {
		return "", fmt.Errorf("--ttl must not be negative")
	}

	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
