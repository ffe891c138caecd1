package wargaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Operation names used in errors and logs
const (
	OpFindAccount            = "account/list"
	OpListAccountVehicleIDs  = "account/tanks"
	OpFetchVehicleReference  = "encyclopedia/vehicles"
	OpFetchVehicleStatistics = "tanks/stats"
)

// Client talks to the World of Tanks public API
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client. A nil httpClient gets one with the
// configured timeout.
func NewClient(config Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// FindAccount resolves a player nickname to an account id. An exact
// (case-insensitive) nickname match wins, otherwise the first search hit.
func (c *Client) FindAccount(ctx context.Context, nickname string) (int, error) {
	if strings.TrimSpace(nickname) == "" {
		return 0, &ValidationError{Operation: OpFindAccount, Message: "player name must not be empty"}
	}

	params := url.Values{}
	params.Set("search", nickname)

	var accounts []accountEntry
	if _, err := c.call(ctx, OpFindAccount, params, &accounts); err != nil {
		return 0, err
	}
	if len(accounts) == 0 {
		return 0, &ValidationError{Operation: OpFindAccount, Message: fmt.Sprintf("no account found for player %q", nickname)}
	}

	for _, a := range accounts {
		if strings.EqualFold(a.Nickname, nickname) {
			return a.AccountID, nil
		}
	}
	return accounts[0].AccountID, nil
}

// ListAccountVehicleIDs returns the ids of every vehicle the account owns
func (c *Client) ListAccountVehicleIDs(ctx context.Context, accountID int) ([]int, error) {
	if accountID <= 0 {
		return nil, &ValidationError{Operation: OpListAccountVehicleIDs, Message: fmt.Sprintf("invalid account id %d", accountID)}
	}

	params := url.Values{}
	params.Set("account_id", strconv.Itoa(accountID))
	params.Set("fields", "tank_id")

	var byAccount map[string][]accountTank
	if _, err := c.call(ctx, OpListAccountVehicleIDs, params, &byAccount); err != nil {
		return nil, err
	}

	tanks, ok := byAccount[strconv.Itoa(accountID)]
	if !ok {
		return nil, &ValidationError{Operation: OpListAccountVehicleIDs, Message: fmt.Sprintf("no data for account %d", accountID)}
	}

	ids := make([]int, 0, len(tanks))
	for _, t := range tanks {
		ids = append(ids, t.TankID)
	}
	return ids, nil
}

// FetchVehicleReference returns the requested fields for the whole vehicle
// catalog keyed by vehicle id, following pagination.
func (c *Client) FetchVehicleReference(ctx context.Context, fields []string) (map[string]VehicleInfo, error) {
	if len(fields) == 0 {
		return nil, &ValidationError{Operation: OpFetchVehicleReference, Message: "at least one field must be requested"}
	}

	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)

	catalog := make(map[string]VehicleInfo)
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("fields", strings.Join(sorted, ","))
		params.Set("limit", strconv.Itoa(c.config.PageLimit))
		params.Set("page_no", strconv.Itoa(page))

		var data map[string]*VehicleInfo
		m, err := c.call(ctx, OpFetchVehicleReference, params, &data)
		if err != nil {
			return nil, err
		}

		for id, info := range data {
			// The API returns null for ids it knows but cannot describe
			if info == nil {
				continue
			}
			catalog[id] = *info
		}

		if m.PageTotal <= page {
			break
		}
	}

	c.logger.Debug("fetched vehicle catalog", "vehicles", len(catalog))
	return catalog, nil
}

// FetchVehicleStatistics returns the overall battle statistics of one
// vehicle on an account.
func (c *Client) FetchVehicleStatistics(ctx context.Context, accountID, tankID int) (*VehicleStatistics, error) {
	if accountID <= 0 || tankID <= 0 {
		return nil, &ValidationError{
			Operation: OpFetchVehicleStatistics,
			Message:   fmt.Sprintf("invalid account id %d or tank id %d", accountID, tankID),
		}
	}

	params := url.Values{}
	params.Set("account_id", strconv.Itoa(accountID))
	params.Set("tank_id", strconv.Itoa(tankID))
	params.Set("fields", "all,tank_id")

	var byAccount map[string][]tankStatsEntry
	if _, err := c.call(ctx, OpFetchVehicleStatistics, params, &byAccount); err != nil {
		return nil, err
	}

	for _, entry := range byAccount[strconv.Itoa(accountID)] {
		if entry.TankID == tankID && entry.All != nil {
			return entry.All, nil
		}
	}

	return nil, &ValidationError{
		Operation: OpFetchVehicleStatistics,
		Message:   fmt.Sprintf("no statistics for tank %d on account %d", tankID, accountID),
	}
}

// call performs one GET request and decodes the data member into out
func (c *Client) call(ctx context.Context, op string, params url.Values, out any) (meta, error) {
	params.Set("application_id", c.config.ApplicationID)
	if c.config.Language != "" {
		params.Set("language", c.config.Language)
	}

	endpoint := strings.TrimSuffix(c.config.baseURL(), "/") + "/" + op + "/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return meta{}, &ValidationError{Operation: op, Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("calling wargaming api", "operation", op)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return meta{}, &RequestError{Operation: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return meta{}, &RequestError{Operation: op, Code: resp.StatusCode, Message: resp.Status}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return meta{}, &ValidationError{Operation: op, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}

	if env.Status != "ok" {
		if env.Error == nil {
			return meta{}, &ValidationError{Operation: op, Message: fmt.Sprintf("unexpected response status %q", env.Status)}
		}
		re := &RequestError{
			Operation: op,
			Code:      env.Error.Code,
			Field:     env.Error.Field,
			Message:   env.Error.Message,
		}
		if env.Error.Value != nil {
			re.Value = fmt.Sprint(env.Error.Value)
		}
		return meta{}, re
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return meta{}, &ValidationError{Operation: op, Message: "response has no data"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return meta{}, &ValidationError{Operation: op, Message: fmt.Sprintf("failed to decode data: %v", err)}
	}

	return env.Meta, nil
}
