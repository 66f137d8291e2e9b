package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/domain/identity"
)

// fixtures is the YAML layout accepted by the seed command.
type fixtures struct {
	Hospitals []hospital.Hospital `yaml:"hospitals"`
	Users     []userFixture       `yaml:"users"`
}

type userFixture struct {
	Email      string   `yaml:"email"`
	FullName   string   `yaml:"fullName"`
	HospitalID string   `yaml:"hospitalId"`
	Roles      []string `yaml:"roles"`
	Active     *bool    `yaml:"active"`
}

func (f userFixture) toUser() (*identity.User, error) {
	email := identity.NormalizeEmail(f.Email)
	if email == "" {
		return nil, fmt.Errorf("user fixture: email is required")
	}
	u := &identity.User{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)),
		Email:    email,
		FullName: f.FullName,
		Roles:    identity.ParseRoles(f.Roles),
		Active:   f.Active == nil || *f.Active,
	}
	if len(u.Roles) == 0 {
		return nil, fmt.Errorf("user fixture %s: at least one role is required", email)
	}
	if id := strings.TrimSpace(f.HospitalID); id != "" {
		u.HospitalID = &id
	}
	return u, nil
}

func parseFixtures(raw []byte) (*fixtures, error) {
	var fx fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i := range fx.Hospitals {
		h := &fx.Hospitals[i]
		h.ID = strings.TrimSpace(h.ID)
		if h.ID == "" || strings.TrimSpace(h.Name) == "" {
			return nil, fmt.Errorf("hospital fixture %d: id and name are required", i)
		}
		h.FederatedState = hospital.FederatedState(strings.ToUpper(string(h.FederatedState)))
		if h.FederatedState != "" && !h.FederatedState.Valid() {
			return nil, fmt.Errorf("hospital fixture %s: unknown federated state %q", h.ID, h.FederatedState)
		}
	}
	return &fx, nil
}

type seedTarget struct {
	hospitals hospital.Repository
	users     identity.Repository
}

// apply upserts hospitals before users so assignments resolve.
func (t seedTarget) apply(ctx context.Context, fx *fixtures) (int, int, error) {
	for i := range fx.Hospitals {
		if err := t.hospitals.Upsert(ctx, &fx.Hospitals[i]); err != nil {
			return 0, 0, fmt.Errorf("seed hospital %s: %w", fx.Hospitals[i].ID, err)
		}
	}
	for _, f := range fx.Users {
		u, err := f.toUser()
		if err != nil {
			return len(fx.Hospitals), 0, err
		}
		if err := t.users.Upsert(ctx, u); err != nil {
			return len(fx.Hospitals), 0, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	return len(fx.Hospitals), len(fx.Users), nil
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert hospitals and users from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read fixtures: %w", err)
			}
			fx, err := parseFixtures(raw)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			nh, nu, err := seedTarget{hospitals: st.Hospitals, users: st.Users}.apply(ctx, fx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d hospital(s) and %d user(s).\n", nh, nu)
			return nil
		},
	}
	cmd.Flags().String("file", "fixtures.yaml", "Path to the YAML fixture file")
	return cmd
}
