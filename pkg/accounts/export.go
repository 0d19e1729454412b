package accounts

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// userYAML is one exported account record. Password is deliberately
// omitted — the `export-users` CLI subcommand is for auditing usernames
// and roles, not for dumping credentials, grounded on gospeak's
// ExportUsersYAML (pkg/server/config.go) which makes the same omission.
type userYAML struct {
	Username string `yaml:"username"`
	Role     string `yaml:"role"`
}

type usersYAML struct {
	Users []userYAML `yaml:"users"`
}

// ExportUsersYAML renders every account in store as a YAML document, for
// the `hublinkd export-users` CLI subcommand.
func ExportUsersYAML(store Store) ([]byte, error) {
	accounts, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("accounts: list for export: %w", err)
	}

	out := usersYAML{Users: make([]userYAML, 0, len(accounts))}
	for _, acc := range accounts {
		out.Users = append(out.Users, userYAML{Username: acc.Username, Role: acc.Role.String()})
	}
	return yaml.Marshal(&out)
}
