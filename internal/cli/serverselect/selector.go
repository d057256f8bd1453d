// Package serverselect decides which configured AuthCenter a command talks to.
package serverselect

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"

	"github.com/authcenter/authctl/internal/cli/config"
	"github.com/authcenter/authctl/internal/cli/userconfig"
)

// ResolveServer picks the server in this order: the explicit --server value,
// the server remembered in the user config, the only configured server, and
// finally an interactive choice. Implicit choices are remembered.
func ResolveServer(cfg *config.Config, urlOrAlias string, logger zerolog.Logger) (*config.Server, error) {
	if urlOrAlias != "" {
		return cfg.FindServer(urlOrAlias)
	}

	selected, err := userconfig.GetSelectedServer()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if selected != "" {
		if server, err := cfg.GetServerByURL(selected); err == nil {
			return server, nil
		}
		logger.Debug().Str("server", selected).Msg("Selected server no longer configured")
	}

	var server *config.Server
	if len(cfg.Servers) == 1 {
		server = &cfg.Servers[0]
	} else if server, err = Prompt(cfg); err != nil {
		return nil, err
	}

	if err := userconfig.SetSelectedServer(server.URL); err != nil {
		logger.Warn().Err(err).Msg("Failed to remember selected server")
	}
	return server, nil
}

// Prompt asks the user to pick one of the configured servers
func Prompt(cfg *config.Config) (*config.Server, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", config.ConfigFileName)
	}

	labels := make([]string, len(cfg.Servers))
	for i, server := range cfg.Servers {
		labels[i] = fmt.Sprintf("%s (%s)", server.Alias, server.URL)
	}

	prompt := promptui.Select{
		Label: "Select a server",
		Items: labels,
		Size:  10,
		Templates: &promptui.SelectTemplates{
			Active:   "> {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "{{ . | green }}",
		},
	}

	index, _, err := prompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil, errors.New("server selection cancelled")
	}
	if err != nil {
		return nil, fmt.Errorf("server selection failed: %w", err)
	}
	return &cfg.Servers[index], nil
}
