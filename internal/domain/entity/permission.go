package entity

import (
	"fmt"
	"strings"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
)

// Permission is addressed as "app_label.codename".
// Accounts hold permissions directly or through groups.
type Permission struct {
	ID       string
	AppLabel string
	Codename string
	Name     string
}

func (p Permission) String() string {
	return p.AppLabel + "." + p.Codename
}

// Group bundles permissions granted to its members.
type Group struct {
	ID   string
	Name string
}

// ParsePerm splits "app_label.codename". Exactly one dot is accepted.
func ParsePerm(perm string) (appLabel, codename string, err error) {
	parts := strings.Split(perm, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: permission name should be in the form app_label.permission_codename", domain.ErrInvalidInput)
	}
	return parts[0], parts[1], nil
}
