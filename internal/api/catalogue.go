package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Login       bool   `json:"login"`
	AccessToken string `json:"access_token"`
}

// Login authenticates with email and password and stores the session token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.APIClientTimeout)
	defer cancel()

	resp, err := c.doRequest(ctx, "POST", "/auth/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 400 || resp.StatusCode == 401 {
		return fmt.Errorf("login failed: %w", ErrUnauthorized)
	}
	if err := checkStatus(resp, "POST", "/auth/login"); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	var out loginResponse
	if err := decodeBody(resp, &out); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("login failed: server returned no access token: %w", ErrUnauthorized)
	}
	c.SetToken(out.AccessToken)
	return nil
}

// ListOpenProjects lists the projects the user can see that are still open.
func (c *Client) ListOpenProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.getJSON(ctx, "/data/projects/open", 0, listOf(&projects)); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListEpisodes lists the episodes of a project.
func (c *Client) ListEpisodes(ctx context.Context, projectID string) ([]models.Episode, error) {
	var episodes []models.Episode
	path := "/data/episodes?project_id=" + url.QueryEscape(projectID)
	if err := c.getJSON(ctx, path, constants.ListingFallbackTimeout, listOf(&episodes)); err != nil {
		return nil, err
	}
	return episodes, nil
}

// ListEpisodeSequences lists the sequences of one episode.
func (c *Client) ListEpisodeSequences(ctx context.Context, episodeID string) ([]models.Sequence, error) {
	var seqs []models.Sequence
	path := "/data/sequences?episode_id=" + url.QueryEscape(episodeID)
	if err := c.getJSON(ctx, path, constants.ListingFallbackTimeout, listOf(&seqs)); err != nil {
		return nil, err
	}
	return seqs, nil
}

// ListProjectSequences lists every sequence attached to a project, including
// sequences that belong to no episode.
func (c *Client) ListProjectSequences(ctx context.Context, projectID string) ([]models.Sequence, error) {
	var seqs []models.Sequence
	path := "/data/sequences?project_id=" + url.QueryEscape(projectID)
	if err := c.getJSON(ctx, path, constants.ListingFallbackTimeout, listOf(&seqs)); err != nil {
		return nil, err
	}
	return seqs, nil
}

// ListShots lists the shots of a project.
func (c *Client) ListShots(ctx context.Context, projectID string) ([]models.Entity, error) {
	var shots []models.Entity
	if err := c.getJSON(ctx, "/data/projects/"+url.PathEscape(projectID)+"/shots", 0, listOf(&shots)); err != nil {
		return nil, err
	}
	for i := range shots {
		shots[i] = models.NewShot(shots[i])
	}
	return shots, nil
}

// ListAssets lists the assets of a project.
func (c *Client) ListAssets(ctx context.Context, projectID string) ([]models.Entity, error) {
	var assets []models.Entity
	if err := c.getJSON(ctx, "/data/projects/"+url.PathEscape(projectID)+"/assets", 0, listOf(&assets)); err != nil {
		return nil, err
	}
	for i := range assets {
		assets[i] = models.NewAsset(assets[i])
	}
	return assets, nil
}

// ListTasks lists the tasks of a shot or asset.
func (c *Client) ListTasks(ctx context.Context, entity models.Entity) ([]models.Task, error) {
	var route string
	switch entity.Kind {
	case models.KindShot:
		route = "shots"
	case models.KindAsset:
		route = "assets"
	default:
		return nil, fmt.Errorf("cannot list tasks for entity kind %s", entity.Kind)
	}

	var tasks []models.Task
	if err := c.getJSON(ctx, "/data/"+route+"/"+url.PathEscape(entity.ID)+"/tasks", 0, listOf(&tasks)); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetPreviewFile fetches preview-file metadata. A missing preview returns an
// error matching ErrNotFound.
func (c *Client) GetPreviewFile(ctx context.Context, id string) (*models.FileRecord, error) {
	var f models.FileRecord
	if err := c.getJSON(ctx, "/data/preview-files/"+url.PathEscape(id), 0, &f); err != nil {
		return nil, err
	}
	if f.ID == "" {
		f.ID = id
	}
	f.Category = models.CategoryPreview
	return &f, nil
}

// ListOutputFiles lists the output files of a task.
func (c *Client) ListOutputFiles(ctx context.Context, taskID string) ([]models.FileRecord, error) {
	return c.listTaskFiles(ctx, taskID, "output-files", models.CategoryOutput)
}

// ListWorkingFiles lists the working files of a task.
func (c *Client) ListWorkingFiles(ctx context.Context, taskID string) ([]models.FileRecord, error) {
	return c.listTaskFiles(ctx, taskID, "working-files", models.CategoryWorking)
}

func (c *Client) listTaskFiles(ctx context.Context, taskID, route string, category models.Category) ([]models.FileRecord, error) {
	var files []models.FileRecord
	if err := c.getJSON(ctx, "/data/tasks/"+url.PathEscape(taskID)+"/"+route, 0, listOf(&files)); err != nil {
		return nil, err
	}
	for i := range files {
		files[i].Category = category
	}
	return files, nil
}

// GetEntity fetches any record by id through the generic entity endpoint.
// It is used when the category of an id is unknown (parents, task types).
func (c *Client) GetEntity(ctx context.Context, id string) (*models.NamedRecord, error) {
	var rec models.NamedRecord
	if err := c.getJSON(ctx, "/data/entities/"+url.PathEscape(id), constants.EntityLookupTimeout, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetTaskType fetches a task type (Modeling, Animation, ...) by id.
func (c *Client) GetTaskType(ctx context.Context, id string) (*models.NamedRecord, error) {
	var rec models.NamedRecord
	if err := c.getJSON(ctx, "/data/task-types/"+url.PathEscape(id), constants.EntityLookupTimeout, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetAssetType fetches an asset type (Characters, Props, ...) by id.
func (c *Client) GetAssetType(ctx context.Context, id string) (*models.NamedRecord, error) {
	var rec models.NamedRecord
	if err := c.getJSON(ctx, "/data/entity-types/"+url.PathEscape(id), constants.EntityLookupTimeout, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
