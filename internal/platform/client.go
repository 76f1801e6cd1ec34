package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studylane/sync-agent/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// ErrUnreachable transport level failure, the platform could not be reached.
// Callers use it to tell connectivity loss apart from a server side rejection
var ErrUnreachable = errors.New("platform unreachable")

// Config platform client options
type Config struct {
	BaseURL    string
	HealthPath string        // probed to confirm real connectivity
	Timeout    time.Duration // per request timeout
}

// Client REST client against the remote tutoring platform
type Client struct {
	base       *url.URL
	healthPath string
	http       *http.Client
	session    *auth.Session
	logger     *zap.Logger
}

// NewClient create a platform Client instance
func NewClient(cfg *Config, session *auth.Session, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid platform base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/healthz"
	}
	return &Client{
		base:       base,
		healthPath: healthPath,
		http:       &http.Client{Timeout: timeout},
		session:    session,
		logger:     logger,
	}, nil
}

// ProgressPayload body of the material progress endpoint
type ProgressPayload struct {
	ProgressPercentage float64 `json:"progress_percentage"`
	TimeSpent          int     `json:"time_spent"`
}

// AnswerParams payload of the answer submission endpoint
type AnswerParams struct {
	ElementID     string      `json:"element_id"`
	LessonID      string      `json:"lesson_id"`
	GraphID       string      `json:"graph_id,omitempty"`
	GraphLessonID string      `json:"graph_lesson_id,omitempty"`
	Answer        interface{} `json:"answer"`
}

// AnswerResult outcome reported by the answer submission endpoint
type AnswerResult struct {
	Success bool   `json:"success"`
	Cached  bool   `json:"cached"`
	Error   string `json:"error,omitempty"`
}

// CompletionCheck server view of a lesson's completion criteria
type CompletionCheck struct {
	Ready           bool `json:"ready"`
	AlreadyComplete bool `json:"already_complete"`
}

// UnlockedLesson one lesson unlocked by a completion event
type UnlockedLesson struct {
	LessonID    string `json:"lesson_id"`
	LessonTitle string `json:"lesson_title"`
}

// CompletionResult outcome of marking a lesson complete
type CompletionResult struct {
	LessonID        string           `json:"lesson_id"`
	Completed       bool             `json:"completed"`
	UnlockedLessons []UnlockedLesson `json:"unlocked_lessons"`
}

// UpdateProgress deliver one progress record to the platform
func (c *Client) UpdateProgress(ctx context.Context, resourceID string, percent float64, timeSpent int) error {
	body := &ProgressPayload{
		ProgressPercentage: percent,
		TimeSpent:          timeSpent,
	}
	path := fmt.Sprintf("/materials/%s/progress/", url.PathEscape(resourceID))
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// SubmitAnswer submit a single user answer
func (c *Client) SubmitAnswer(ctx context.Context, params AnswerParams) (*AnswerResult, error) {
	result := new(AnswerResult)
	if err := c.do(ctx, http.MethodPost, "/answers/", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// CheckCompletion ask whether a lesson's completion criteria are met
func (c *Client) CheckCompletion(ctx context.Context, lessonID, graphLessonID, studentID string) (*CompletionCheck, error) {
	path := fmt.Sprintf("/lessons/%s/completion/?graph_lesson_id=%s&student_id=%s",
		url.PathEscape(lessonID), url.QueryEscape(graphLessonID), url.QueryEscape(studentID))
	check := new(CompletionCheck)
	if err := c.do(ctx, http.MethodGet, path, nil, check); err != nil {
		return nil, err
	}
	return check, nil
}

// CompleteLesson mark a lesson complete and collect unlocked lessons
func (c *Client) CompleteLesson(ctx context.Context, graphID, lessonID, graphLessonID, studentID string) (*CompletionResult, error) {
	path := fmt.Sprintf("/graphs/%s/lessons/%s/complete/", url.PathEscape(graphID), url.PathEscape(lessonID))
	body := map[string]string{
		"graph_lesson_id": graphLessonID,
		"student_id":      studentID,
	}
	result := new(CompletionResult)
	if err := c.do(ctx, http.MethodPost, path, body, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Probe lightweight connectivity check, any 2xx means reachable
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.resolve(c.healthPath), nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer drain(res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: probe status %d", ErrUnreachable, res.StatusCode)
	}
	return nil
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return strings.TrimRight(c.base.String(), "/") + path
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		c.session.Authorize(req)
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("platform request failed",
			zap.String("http.request.method", method),
			zap.String("url.path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer drain(res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		detail, _ := ioutil.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("platform responded %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("malformed platform response: %w", err)
		}
	}
	return nil
}

func drain(body io.ReadCloser) {
	io.Copy(ioutil.Discard, io.LimitReader(body, 4096))
	body.Close()
}
