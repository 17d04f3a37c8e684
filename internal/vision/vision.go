// Package vision provides the client for the visual recognition API used
// to match user photos against celebrity classifiers and detect faces.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/aldenlin/celebmatch-linebot-go/internal/config"
	apperrors "github.com/aldenlin/celebmatch-linebot-go/internal/errors"
	"github.com/aldenlin/celebmatch-linebot-go/internal/metrics"
	"github.com/aldenlin/celebmatch-linebot-go/internal/retry"
)

const (
	// ServiceName is the label used for metrics and external errors.
	ServiceName = "vision"

	apiVersion = "2018-03-19"
)

// Class is a single (label, confidence) prediction.
type Class struct {
	Name  string  `json:"class"`
	Score float64 `json:"score"`
}

// ClassifierResult is one named group of predictions.
type ClassifierResult struct {
	ClassifierID string  `json:"classifier_id"`
	Name         string  `json:"name"`
	Classes      []Class `json:"classes"`
}

// Face carries the gender and age range inferred for the most prominent
// detected face.
type Face struct {
	Gender      string
	GenderScore float64
	AgeMin      int
	AgeMax      int
}

// EstimatedAge returns the midpoint of the detected age range.
func (f *Face) EstimatedAge() int {
	return (f.AgeMin + f.AgeMax) / 2
}

// Config configures the vision client.
type Config struct {
	BaseURL       string
	APIKeys       []string
	ClassifierIDs []string
	Threshold     float64
	HTTPClient    *http.Client
	Metrics       *metrics.Metrics
}

// Client talks to the visual recognition API. Credentials rotate on
// auth/quota failures; a circuit breaker fails fast when the service is
// down; concurrent calls for the same image URL are deduplicated.
type Client struct {
	baseURL       string
	keys          *keyRing
	classifierIDs []string
	threshold     float64
	httpClient    *http.Client
	breaker       *gobreaker.CircuitBreaker[any]
	group         singleflight.Group
	metrics       *metrics.Metrics
}

// New creates a vision client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vision base URL is required")
	}
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("at least one vision API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.VisionRequest}
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        ServiceName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		keys:          newKeyRing(cfg.APIKeys),
		classifierIDs: cfg.ClassifierIDs,
		threshold:     cfg.Threshold,
		httpClient:    httpClient,
		breaker:       breaker,
		metrics:       cfg.Metrics,
	}, nil
}

// Classify submits an image URL to the configured classifiers and returns
// the result sets. Concurrent calls for the same URL share one request.
func (c *Client) Classify(ctx context.Context, imageURL string) ([]ClassifierResult, error) {
	if imageURL == "" {
		return nil, apperrors.ErrInvalidInput
	}

	v, err, shared := c.group.Do("classify:"+imageURL, func() (any, error) {
		return c.execute(ctx, "classify", func() (any, error) {
			return c.doClassify(ctx, imageURL)
		})
	})
	if shared && c.metrics != nil {
		c.metrics.RecordSingleflightDedup(ServiceName)
	}
	if err != nil {
		return nil, err
	}
	return v.([]ClassifierResult), nil
}

// DetectFaces returns the gender and age range of the most prominent face
// in the image. Returns ErrNoFace when the image contains no face.
func (c *Client) DetectFaces(ctx context.Context, imageURL string) (*Face, error) {
	if imageURL == "" {
		return nil, apperrors.ErrInvalidInput
	}

	v, err, shared := c.group.Do("faces:"+imageURL, func() (any, error) {
		return c.execute(ctx, "detect_faces", func() (any, error) {
			return c.doDetectFaces(ctx, imageURL)
		})
	})
	if shared && c.metrics != nil {
		c.metrics.RecordSingleflightDedup(ServiceName)
	}
	if err != nil {
		return nil, err
	}
	face, _ := v.(*Face)
	if face == nil {
		return nil, apperrors.ErrNoFace
	}
	return face, nil
}

// execute runs an API call through the circuit breaker and the retry
// loop, rotating credentials on auth/quota failures.
func (c *Client) execute(ctx context.Context, operation string, fn func() (any, error)) (any, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		var value any
		retryErr := retry.WithBackoff(ctx, c.maxAttempts(), config.VisionRetryInitial, func() error {
			v, callErr := fn()
			if callErr == nil {
				value = v
				return nil
			}

			switch apperrors.ExternalKind(callErr) {
			case apperrors.KindAuth, apperrors.KindQuota:
				if c.keys.Len() > 1 {
					c.keys.Rotate()
					if c.metrics != nil {
						c.metrics.RecordKeyRotation()
					}
					slog.WarnContext(ctx, "rotated vision credential",
						"operation", operation,
						"kind", string(apperrors.ExternalKind(callErr)))
					return callErr
				}
				return retry.Permanent(callErr)
			case apperrors.KindMalformed, apperrors.KindNotFound:
				return retry.Permanent(callErr)
			default:
				return callErr
			}
		})
		return value, retryErr
	})

	status := "success"
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			err = apperrors.NewExternalError(ServiceName, apperrors.KindNetwork, err)
		}
		status = string(apperrors.ExternalKind(err))
		if status == "" {
			status = "error"
		}
	}
	if c.metrics != nil {
		c.metrics.RecordExternalCall(ServiceName, status, time.Since(start).Seconds())
	}
	return result, err
}

// maxAttempts sizes the retry budget so every credential in the ring can
// be tried at least once.
func (c *Client) maxAttempts() int {
	if n := c.keys.Len(); n > 2 {
		return n
	}
	return 2
}

func (c *Client) doClassify(ctx context.Context, imageURL string) ([]ClassifierResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v3/classify", nil)
	if err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}
	q := req.URL.Query()
	q.Set("url", imageURL)
	if len(c.classifierIDs) > 0 {
		q.Set("classifier_ids", strings.Join(c.classifierIDs, ","))
	}
	if c.threshold > 0 {
		q.Set("threshold", strconv.FormatFloat(c.threshold, 'f', -1, 64))
	}
	q.Set("version", apiVersion)
	req.URL.RawQuery = q.Encode()
	req.SetBasicAuth("apikey", c.keys.Current())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var payload struct {
		Images []struct {
			Classifiers []ClassifierResult `json:"classifiers"`
		} `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}
	if len(payload.Images) == 0 {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed,
			fmt.Errorf("response contains no images"))
	}
	return payload.Images[0].Classifiers, nil
}

func (c *Client) doDetectFaces(ctx context.Context, imageURL string) (*Face, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v3/detect_faces", nil)
	if err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}
	q := req.URL.Query()
	q.Set("url", imageURL)
	q.Set("version", apiVersion)
	req.URL.RawQuery = q.Encode()
	req.SetBasicAuth("apikey", c.keys.Current())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var payload struct {
		Images []struct {
			Faces []struct {
				Age struct {
					Min   int     `json:"min"`
					Max   int     `json:"max"`
					Score float64 `json:"score"`
				} `json:"age"`
				Gender struct {
					Gender string  `json:"gender"`
					Score  float64 `json:"score"`
				} `json:"gender"`
			} `json:"faces"`
		} `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}
	if len(payload.Images) == 0 || len(payload.Images[0].Faces) == 0 {
		return nil, nil
	}

	first := payload.Images[0].Faces[0]
	return &Face{
		Gender:      strings.ToLower(first.Gender.Gender),
		GenderScore: first.Gender.Score,
		AgeMin:      first.Age.Min,
		AgeMax:      first.Age.Max,
	}, nil
}

// checkStatus maps HTTP status codes onto failure kinds.
func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.NewExternalError(ServiceName, apperrors.KindAuth,
			fmt.Errorf("status %d", code))
	case code == http.StatusTooManyRequests:
		return apperrors.NewExternalError(ServiceName, apperrors.KindQuota,
			fmt.Errorf("status %d", code))
	case code >= 400 && code < 500:
		return apperrors.NewExternalError(ServiceName, apperrors.KindMalformed,
			fmt.Errorf("status %d", code))
	default:
		return apperrors.NewExternalError(ServiceName, apperrors.KindNetwork,
			fmt.Errorf("status %d", code))
	}
}
