package auth

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Permissions maps an upper-case role to the permissions it grants.
type Permissions map[string][]string

type permissionsFile struct {
	Roles map[string][]string `yaml:"roles"`
}

var knownRoles = map[string]bool{
	RoleAdmin:        true,
	RoleOrthodontist: true,
	RoleAssistant:    true,
	RoleReceptionist: true,
}

// LoadPermissions reads a permissions.yml file. Role names are upper-cased,
// permissions must look like resource:action and duplicates are dropped.
func LoadPermissions(path string) (Permissions, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permissions: %w", err)
	}
	var pf permissionsFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, fmt.Errorf("parse permissions: %w", err)
	}
	if len(pf.Roles) == 0 {
		return nil, fmt.Errorf("parse permissions: %s defines no roles", path)
	}

	perms := make(Permissions, len(pf.Roles))
	for role, list := range pf.Roles {
		key := strings.ToUpper(strings.TrimSpace(role))
		if !knownRoles[key] {
			return nil, fmt.Errorf("parse permissions: unknown role %q", role)
		}
		seen := make(map[string]bool, len(list))
		for _, p := range perms[key] {
			seen[p] = true
		}
		for _, p := range list {
			resource, action, ok := strings.Cut(p, ":")
			if !ok || resource == "" || action == "" {
				return nil, fmt.Errorf("parse permissions: role %s: malformed permission %q", key, p)
			}
			if !seen[p] {
				seen[p] = true
				perms[key] = append(perms[key], p)
			}
		}
		sort.Strings(perms[key])
	}
	return perms, nil
}

// Allows reports whether role grants permission. Role matching ignores case.
func (p Permissions) Allows(role, permission string) bool {
	list, ok := p[role]
	if !ok {
		list = p[strings.ToUpper(role)]
	}
	for _, granted := range list {
		if granted == permission {
			return true
		}
	}
	return false
}
