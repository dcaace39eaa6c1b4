package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
)

const (
	// DefaultBaseURL is the OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 60 * time.Second

	listPageSize   = 100
	maxErrorBody   = 4 << 10
	betaHeader     = "OpenAI-Beta"
	betaAssistants = "assistants=v2"
)

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// OpenAI implements Client against the OpenAI vector store, files and
// assistants APIs, or any server that speaks the same protocol.
type OpenAI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Client = (*OpenAI)(nil)

// NewOpenAI creates an HTTP client.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, qaerrors.New(qaerrors.ErrCodeConfigInvalid, "indexing backend API key is not set", nil).
			WithSuggestion("Set OPENAI_API_KEY or index.api_key in the config file")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAI{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}, nil
}

// CreateCollection creates a vector store.
func (c *OpenAI) CreateCollection(ctx context.Context, label string) (string, error) {
	var out idResponse
	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores", map[string]any{"name": label}, &out); err != nil {
		return "", fmt.Errorf("create collection: %w", err)
	}
	return out.ID, nil
}

// AddFile attaches an uploaded file to a vector store.
func (c *OpenAI) AddFile(ctx context.Context, collectionID, fileID string) (string, error) {
	var out idResponse
	path := "/vector_stores/" + url.PathEscape(collectionID) + "/files"
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"file_id": fileID}, &out); err != nil {
		return "", fmt.Errorf("add file to collection: %w", err)
	}
	return out.ID, nil
}

// GetFile checks that a file exists.
func (c *OpenAI) GetFile(ctx context.Context, fileID string) error {
	if err := c.doJSON(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID), nil, nil); err != nil {
		return fmt.Errorf("get file: %w", err)
	}
	return nil
}

// GetCollectionFileStatus reads the ingestion status of a vector store file.
func (c *OpenAI) GetCollectionFileStatus(ctx context.Context, collectionID, collectionFileID string) (FileStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := "/vector_stores/" + url.PathEscape(collectionID) + "/files/" + url.PathEscape(collectionFileID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("get collection file: %w", err)
	}
	return FileStatus(out.Status), nil
}

// DeleteFile removes an uploaded file.
func (c *OpenAI) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, nil); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// DeleteCollectionFile detaches a file from a vector store.
func (c *OpenAI) DeleteCollectionFile(ctx context.Context, collectionID, collectionFileID string) error {
	path := "/vector_stores/" + url.PathEscape(collectionID) + "/files/" + url.PathEscape(collectionFileID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete collection file: %w", err)
	}
	return nil
}

// SubmitJob creates a thread bound to the collection, posts the query and
// starts a file-search run.
func (c *OpenAI) SubmitJob(ctx context.Context, req JobRequest) (JobHandle, error) {
	if req.AssistantID == "" {
		return JobHandle{}, qaerrors.New(qaerrors.ErrCodeConfigInvalid, "assistant id is not set", nil).
			WithSuggestion("Set OPENAI_ASSISTANT_ID or index.assistant_id in the config file")
	}

	threadReq := map[string]any{}
	if req.CollectionID != "" {
		threadReq["tool_resources"] = map[string]any{
			"file_search": map[string]any{"vector_store_ids": []string{req.CollectionID}},
		}
	}

	var thread idResponse
	if err := c.doJSON(ctx, http.MethodPost, "/threads", threadReq, &thread); err != nil {
		return JobHandle{}, fmt.Errorf("create thread: %w", err)
	}
	threadPath := "/threads/" + url.PathEscape(thread.ID)

	msg := map[string]any{"role": string(RoleUser), "content": req.Query}
	if err := c.doJSON(ctx, http.MethodPost, threadPath+"/messages", msg, nil); err != nil {
		return JobHandle{}, fmt.Errorf("add message: %w", err)
	}

	run := map[string]any{
		"assistant_id": req.AssistantID,
		"tools":        []map[string]string{{"type": "file_search"}},
	}
	if req.Model != "" {
		run["model"] = req.Model
	}
	if req.ReasoningEffort != "" {
		run["reasoning_effort"] = req.ReasoningEffort
	}
	if req.Instructions != "" {
		run["additional_instructions"] = req.Instructions
	}

	var out idResponse
	if err := c.doJSON(ctx, http.MethodPost, threadPath+"/runs", run, &out); err != nil {
		return JobHandle{}, fmt.Errorf("start run: %w", err)
	}

	return JobHandle{ThreadID: thread.ID, RunID: out.ID}, nil
}

// GetJobStatus reads a run's status.
func (c *OpenAI) GetJobStatus(ctx context.Context, h JobHandle) (JobStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := "/threads/" + url.PathEscape(h.ThreadID) + "/runs/" + url.PathEscape(h.RunID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("get run: %w", err)
	}
	return JobStatus(out.Status), nil
}

// GetJobMessages lists the thread transcript, oldest first.
func (c *OpenAI) GetJobMessages(ctx context.Context, h JobHandle) ([]Message, error) {
	var out messageList
	path := "/threads/" + url.PathEscape(h.ThreadID) + "/messages?order=asc&limit=" + fmt.Sprint(listPageSize)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]Message, 0, len(out.Data))
	for _, m := range out.Data {
		msgs = append(msgs, m.toMessage())
	}
	return msgs, nil
}

// UploadFile uploads file content for use by assistants.
func (c *OpenAI) UploadFile(ctx context.Context, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("upload file: read content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/files", &buf)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out idResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return out.ID, nil
}

// GetFileContent downloads a file.
func (c *OpenAI) GetFileContent(ctx context.Context, fileID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content", nil)
	if err != nil {
		return nil, fmt.Errorf("get file content: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("get file content: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get file content: %w", qaerrors.NetworkError("read response body", err))
	}
	return data, nil
}

// ListCollectionFiles pages through a vector store's files.
func (c *OpenAI) ListCollectionFiles(ctx context.Context, collectionID string) ([]string, error) {
	base := "/vector_stores/" + url.PathEscape(collectionID) + "/files?limit=" + fmt.Sprint(listPageSize)

	var ids []string
	after := ""
	for {
		path := base
		if after != "" {
			path += "&after=" + url.QueryEscape(after)
		}

		var page struct {
			Data    []idResponse `json:"data"`
			HasMore bool         `json:"has_more"`
			LastID  string       `json:"last_id"`
		}
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("list collection files: %w", err)
		}

		for _, f := range page.Data {
			ids = append(ids, f.ID)
		}
		if !page.HasMore || len(page.Data) == 0 {
			return ids, nil
		}
		after = page.LastID
		if after == "" {
			after = page.Data[len(page.Data)-1].ID
		}
	}
}

// LinkAssistant points the assistant's file search at the collection.
func (c *OpenAI) LinkAssistant(ctx context.Context, assistantID, collectionID string) error {
	body := map[string]any{
		"tool_resources": map[string]any{
			"file_search": map[string]any{"vector_store_ids": []string{collectionID}},
		},
	}
	if err := c.doJSON(ctx, http.MethodPost, "/assistants/"+url.PathEscape(assistantID), body, nil); err != nil {
		return fmt.Errorf("link assistant: %w", err)
	}
	return nil
}

type idResponse struct {
	ID string `json:"id"`
}

type messageList struct {
	Data []apiMessage `json:"data"`
}

type apiMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text *struct {
			Value       string `json:"value"`
			Annotations []struct {
				Type         string `json:"type"`
				StartIndex   int    `json:"start_index"`
				EndIndex     int    `json:"end_index"`
				FileCitation *struct {
					FileID string `json:"file_id"`
				} `json:"file_citation,omitempty"`
			} `json:"annotations"`
		} `json:"text,omitempty"`
	} `json:"content"`
}

// toMessage keeps text content and file citations; other content types
// and annotation kinds are dropped.
func (m apiMessage) toMessage() Message {
	msg := Message{ID: m.ID, Role: Role(m.Role)}
	for _, c := range m.Content {
		if c.Type != "text" || c.Text == nil {
			continue
		}
		block := TextBlock{Text: c.Text.Value}
		for _, a := range c.Text.Annotations {
			if a.Type != "file_citation" || a.FileCitation == nil {
				continue
			}
			block.Annotations = append(block.Annotations, Annotation{
				Start:  a.StartIndex,
				End:    a.EndIndex,
				FileID: a.FileCitation.FileID,
			})
		}
		msg.Blocks = append(msg.Blocks, block)
	}
	return msg
}

func (c *OpenAI) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set(betaHeader, betaAssistants)
	return req, nil
}

func (c *OpenAI) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *OpenAI) do(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return qaerrors.New(qaerrors.ErrCodeBackendRejected, "malformed response from indexing backend", err)
	}
	return nil
}

// send executes req and converts transport failures and non-2xx statuses
// into classified errors. The caller closes the body on success.
func (c *OpenAI) send(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, qaerrors.NetworkError("indexing backend unreachable", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	return nil, statusError(resp)
}

// statusError maps an HTTP failure to an error code:
// 404 not found, 429 rate limited, 5xx unavailable, anything else rejected.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := resp.Status
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	} else if len(data) > 0 && utf8.Valid(data) {
		msg = strings.TrimSpace(string(data))
	}

	var code string
	switch {
	case resp.StatusCode == http.StatusNotFound:
		code = qaerrors.ErrCodeBackendNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		code = qaerrors.ErrCodeRateLimited
	case resp.StatusCode >= 500:
		code = qaerrors.ErrCodeNetworkUnavailable
	default:
		code = qaerrors.ErrCodeBackendRejected
	}

	return qaerrors.New(code, msg, errors.New(resp.Status)).
		WithDetail("status", fmt.Sprint(resp.StatusCode)).
		WithDetail("path", resp.Request.URL.Path)
}
