/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scenewriter/internal/domain"
	"scenewriter/internal/export"
)

// Client talks to a remote scenewriter server.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// ClientOptions tune NewClientWithOptions.
type ClientOptions struct {
	Timeout     time.Duration
	TLSInsecure bool
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// NewClient creates a client with a 10s timeout. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return NewClientWithOptions(baseURL, token, ClientOptions{})
}

// NewClientWithOptions creates a client with explicit transport settings.
func NewClientWithOptions(baseURL, token string, opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if opts.TLSInsecure {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		hc.Transport = tr
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  hc,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		se := &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode}
		var env struct {
			Error string `json:"error"`
		}
		if raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); json.Unmarshal(raw, &env) == nil {
			se.Message = env.Error
		}
		return nil, se
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Export renders req on the server.
func (c *Client) Export(ctx context.Context, req export.Request, format export.Format) (*export.Artifact, error) {
	q := url.Values{"format": {string(format)}}
	resp, err := c.do(ctx, http.MethodPost, "/api/export", q, req)
	if err != nil {
		return nil, err
	}
	return readArtifact(resp, format, len(req.Scenes))
}

// FileName asks the server for the filename an export of req would get.
func (c *Client) FileName(ctx context.Context, req export.Request, format export.Format) (string, error) {
	var out struct {
		Filename string `json:"filename"`
	}
	q := url.Values{"format": {string(format)}}
	if err := c.doJSON(ctx, http.MethodPost, "/api/filename", q, req, &out); err != nil {
		return "", err
	}
	return out.Filename, nil
}

// ListProjects returns the projects the server can export.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	var list []ProjectSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// FetchBundle downloads a project bundle.
func (c *Client) FetchBundle(ctx context.Context, projectID string) (*domain.Bundle, error) {
	var b domain.Bundle
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/bundle", nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ExportProject exports a stored project, optionally scoped to a season and/or episode.
func (c *Client) ExportProject(ctx context.Context, projectID string, format export.Format, seasonID, episodeID string) (*export.Artifact, error) {
	q := url.Values{"format": {string(format)}}
	if seasonID != "" {
		q.Set("season", seasonID)
	}
	if episodeID != "" {
		q.Set("episode", episodeID)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(projectID)+"/export", q, nil)
	if err != nil {
		return nil, err
	}
	return readArtifact(resp, format, 0)
}

func readArtifact(resp *http.Response, format export.Format, scenes int) (*export.Artifact, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	art := &export.Artifact{
		Format:      format,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
		Scenes:      scenes,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		art.Filename = params["filename"]
	}
	if art.Filename == "" {
		return nil, fmt.Errorf("server response has no attachment filename")
	}
	return art, nil
}
