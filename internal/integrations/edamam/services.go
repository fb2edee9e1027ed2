package edamam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/httputil"
)

const (
	label             = "Edamam Food Database"
	accountUserHeader = "Edamam-Account-User"
)

// Result is an upstream JSON body with the status it came with.
type Result struct {
	Status int
	Body   []byte
}

// FoodDatabaseService calls the Edamam food database with server-side
// credentials.
type FoodDatabaseService struct {
	baseURL string
	appID   string
	appKey  string
	client  *httputil.Client
	images  *http.Client
}

func NewFoodDatabaseService(cfg *config.Config, observer httputil.UpstreamObserver) *FoodDatabaseService {
	return &FoodDatabaseService{
		baseURL: strings.TrimRight(cfg.EdamamURL, "/"),
		appID:   cfg.FoodDatabaseAppID,
		appKey:  cfg.FoodDatabaseAppKey,
		client: httputil.NewClient(httputil.ClientConfig{
			Name:     "edamam",
			Label:    label,
			Timeout:  cfg.EdamamTimeout,
			Observer: observer,
		}),
		images: &http.Client{Timeout: 20 * time.Second},
	}
}

func (s *FoodDatabaseService) Parser(ctx context.Context, query url.Values, accountUser string) (*Result, error) {
	return s.call(ctx, http.MethodGet, "/api/food-database/v2/parser", query, nil, accountUser)
}

func (s *FoodDatabaseService) Nutrients(ctx context.Context, req *NutrientsRequest, accountUser string) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Internal("Failed to encode nutrients request", err)
	}
	return s.call(ctx, http.MethodPost, "/api/food-database/v2/nutrients", url.Values{}, body, accountUser)
}

// NutrientsFromImage submits the image. When Edamam cannot fetch an image_url
// itself, the image is downloaded here and resent inline as a data URI.
func (s *FoodDatabaseService) NutrientsFromImage(ctx context.Context, req *NutrientsFromImageRequest, accountUser string) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Internal("Failed to encode image request", err)
	}
	query := url.Values{"beta": {"true"}}

	res, err := s.call(ctx, http.MethodPost, "/api/food-database/nutrients-from-image", query, body, accountUser)
	if err == nil || !rejectedImage(err) || req.Image != "" || req.ImageURL == "" {
		return res, err
	}

	dataURI, ferr := httputil.FetchImageDataURI(ctx, s.images, req.ImageURL)
	if ferr != nil {
		return nil, ferr
	}
	body, err = json.Marshal(NutrientsFromImageRequest{Image: dataURI})
	if err != nil {
		return nil, apperr.Internal("Failed to encode image request", err)
	}
	return s.call(ctx, http.MethodPost, "/api/food-database/nutrients-from-image", query, body, accountUser)
}

func (s *FoodDatabaseService) AutoComplete(ctx context.Context, q AutoCompleteQuery, accountUser string) (*Result, error) {
	query := url.Values{"q": {q.Q}}
	if q.Limit != nil {
		query.Set("limit", strconv.Itoa(*q.Limit))
	}
	return s.call(ctx, http.MethodGet, "/auto-complete", query, nil, accountUser)
}

func (s *FoodDatabaseService) call(ctx context.Context, method, path string, query url.Values, body []byte, accountUser string) (*Result, error) {
	if s.appID == "" || s.appKey == "" {
		return nil, apperr.Internal("Missing FOOD_DATABASE_API_ID or FOOD_DATABASE_API_KEY", httputil.ErrMissingCredentials)
	}

	query.Set("app_id", s.appID)
	query.Set("app_key", s.appKey)
	target := s.baseURL + path + "?" + query.Encode()

	headers := map[string]string{}
	if accountUser != "" {
		headers[accountUserHeader] = accountUser
	}

	var resp *httputil.Response
	var err error
	if method == http.MethodGet {
		resp, err = s.client.Get(ctx, target, headers)
	} else {
		resp, err = s.client.PostJSON(ctx, target, headers, body)
	}
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		msg := httputil.UpstreamMessage(resp.Body, "Edamam Food Database request failed")
		return nil, apperr.WithStatus(apperr.ErrUpstreamBadResponse, resp.Status, msg)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, apperr.New(apperr.ErrUpstreamBadResponse, "Invalid response from Edamam Food Database API")
	}

	return &Result{Status: resp.Status, Body: resp.Body}, nil
}

func rejectedImage(err error) bool {
	status, msg := apperr.HTTPStatus(err)
	return status == http.StatusBadRequest && strings.Contains(msg, "Invalid image")
}
