package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/studiopipe/kitsu-fetch/internal/api"
	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/hierarchy"
	"github.com/studiopipe/kitsu-fetch/internal/http"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/models"
	"github.com/studiopipe/kitsu-fetch/internal/pathutil"
	"github.com/studiopipe/kitsu-fetch/internal/progress"
	"github.com/studiopipe/kitsu-fetch/internal/scan"
)

// login validates cfg, asks for any missing credential and returns an
// authenticated client.
func login(ctx context.Context, cfg *config.Config, p *prompter, logger *logging.Logger) (*api.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if http.NeedsProxyPassword(cfg) {
		pw, err := p.password(fmt.Sprintf("Proxy password for %s: ", cfg.ProxyUser))
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = pw
	}

	email := cfg.Email
	if email == "" {
		var err error
		if email, err = p.line("Kitsu email: "); err != nil {
			return nil, fmt.Errorf("failed to read email: %w", err)
		}
	}
	password := cfg.Password
	if password == "" {
		var err error
		if password, err = p.password("Kitsu password: "); err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
	}
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	client, err := api.NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx, email, password); err != nil {
		return nil, err
	}
	logger.Info().Str("host", client.BaseURL()).Str("email", email).Msg("Logged in")
	return client, nil
}

// selectProject resolves ref, or asks interactively when ref is empty.
func selectProject(ctx context.Context, client *api.Client, ref string, p *prompter) (int, models.Project, error) {
	projects, err := client.ListOpenProjects(ctx)
	if err != nil {
		return -1, models.Project{}, fmt.Errorf("failed to list projects: %w", err)
	}
	var idx int
	if ref != "" {
		idx, err = findProject(projects, ref)
	} else {
		idx, err = p.chooseProject(projects)
	}
	if err != nil {
		return -1, models.Project{}, err
	}
	return idx, projects[idx], nil
}

// includeFlags are the per-category switches shared by scan and fetch.
type includeFlags struct {
	noPreview bool
	noOutput  bool
	noWorking bool
}

// scanProject walks project with the name caches wired to client.
func scanProject(ctx context.Context, cfg *config.Config, client *api.Client, project models.Project, inc includeFlags, logger *logging.Logger) (*scan.Result, error) {
	root, err := pathutil.ResolveRoot(cfg.DownloadRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid download root %q: %w", cfg.DownloadRoot, err)
	}
	scanner := scan.NewScanner(client, scan.Options{
		DownloadRoot:   root,
		Host:           client.BaseURL(),
		IncludePreview: cfg.IncludePreview && !inc.noPreview,
		IncludeOutput:  cfg.IncludeOutput && !inc.noOutput,
		IncludeWorking: cfg.IncludeWorking && !inc.noWorking,
		Parents:        hierarchy.NewNameCache(hierarchy.EntityNames(client), logger),
		TaskTypes:      hierarchy.NewNameCache(hierarchy.TaskTypeNames(client), logger),
		AssetTypes:     hierarchy.NewNameCache(hierarchy.AssetTypeNames(client), logger),
		Progress:       progress.NewCLIProgress(),
		Logger:         logger,
	})
	res, err := scanner.Scan(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("scan of %s cancelled: %w", project.Name, err)
	}
	logger.Debug().Interface("api_calls", client.CallCount()).Msg("Scan finished")
	return res, nil
}
