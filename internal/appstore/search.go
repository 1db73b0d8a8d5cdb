package appstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/apex/log"
)

// Search queries the public iTunes catalog. The country is resolved from the
// account's store front and the entity from the requested platform.
func (as *AppStore) Search(ctx context.Context, term string, account *Account, limit int, platform Platform) (Apps, error) {
	if limit <= 0 || limit > AppStoreSearchLimit {
		limit = AppStoreSearchLimit
	}

	req, err := http.NewRequestWithContext(ctx, "GET", as.ep.Search, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create http GET request: %v", err)
	}

	q := url.Values{}
	q.Add("term", strings.ToLower(term))
	q.Add("country", CountryFromStoreFront(account.StoreFront))
	q.Add("limit", strconv.Itoa(limit))
	q.Add("entity", platform.entity())
	q.Add("media", "software")

	req.URL.RawQuery = q.Encode()
	req.Header.Add("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	result, err := as.query(req)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("no results found for search term %s", term)
	}

	for i := range result.Results {
		result.Results[i].Platform = platform
	}

	return result.Results, nil
}

// Lookup resolves a single app by bundle ID.
func (as *AppStore) Lookup(ctx context.Context, bundleID string, account *Account, platform Platform) (*App, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", as.ep.Lookup, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create http GET request: %v", err)
	}

	q := url.Values{}
	q.Add("bundleId", bundleID)
	q.Add("country", CountryFromStoreFront(account.StoreFront))
	q.Add("limit", "1")
	q.Add("entity", platform.entity())
	q.Add("media", "software")

	req.URL.RawQuery = q.Encode()
	req.Header.Add("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	result, err := as.query(req)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fmt.Errorf("no results found for bundleID %s", bundleID)
	}

	result.Results[0].Platform = platform

	return &result.Results[0], nil
}

func (as *AppStore) query(req *http.Request) (*QueryResults, error) {
	response, err := as.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	log.Debugf("GET appstore query (%d):\n%s\n", response.StatusCode, string(body))

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog query received %s", ErrNetwork, response.Status)
	}

	var result QueryResults
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize response body JSON: %v", err)
	}

	return &result, nil
}
