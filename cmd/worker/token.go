package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/facturador-sunat/pkg/jwt"
)

// tokenCommand emite un JWT para la API de administración (operadores y scripts internos).
func tokenCommand() *cobra.Command {
	var (
		userID    string
		companyID string
		role      string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Genera un token Bearer para la API de administración",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			tok, err := jwt.Generate(cfg.JWT.Secret, userID, companyID, role, cfg.JWT.Issuer, cfg.JWT.Expiration)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "user_id del token")
	cmd.Flags().StringVar(&companyID, "company", "", "tenant (company_id) emisor")
	cmd.Flags().StringVar(&role, "role", "operador", "rol: admin | operador | lectura")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
