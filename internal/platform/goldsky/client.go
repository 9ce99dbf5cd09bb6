// Package goldsky is a GraphQL client for the Goldsky subgraph indexer.
// It serves the five raw event streams the pipeline ingests: exchange
// order fills, position splits/merges, their condition-level cash legs,
// neg-risk conversions, and oracle condition resolutions.
package goldsky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// Client queries a Goldsky subgraph endpoint.
type Client struct {
	graphqlURL string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Goldsky GraphQL client.
//
// graphqlURL is the subgraph endpoint, e.g.
// "https://api.goldsky.com/api/public/.../subgraphs/polymarket-orderbook-resync/gn".
func NewClient(graphqlURL, apiKey string) *Client {
	return &Client{
		graphqlURL: graphqlURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchOrderFills returns exchange OrderFilled events at or after the
// given timestamp, ordered ascending, limited by 'first'.
func (c *Client) FetchOrderFills(ctx context.Context, since time.Time, first int) ([]domain.RawOrderFill, error) {
	query := `
		query OrderFills($since: BigInt!, $first: Int!) {
			orderFilledEvents(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				id
				transactionHash
				timestamp
				blockNumber
				maker
				makerAssetId
				makerAmountFilled
				taker
				takerAssetId
				takerAmountFilled
				fee
			}
		}
	`

	respData, err := c.doQuery(ctx, query, sinceVars(since, first))
	if err != nil {
		return nil, fmt.Errorf("goldsky: fetch order fills: %w", err)
	}

	var result struct {
		OrderFilledEvents []struct {
			ID                string `json:"id"`
			TransactionHash   string `json:"transactionHash"`
			Timestamp         string `json:"timestamp"`
			BlockNumber       string `json:"blockNumber"`
			Maker             string `json:"maker"`
			MakerAssetID      string `json:"makerAssetId"`
			MakerAmountFilled string `json:"makerAmountFilled"`
			Taker             string `json:"taker"`
			TakerAssetID      string `json:"takerAssetId"`
			TakerAmountFilled string `json:"takerAmountFilled"`
			Fee               string `json:"fee"`
		} `json:"orderFilledEvents"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("goldsky: decode order fills: %w", err)
	}

	p := &fieldParser{}
	fills := make([]domain.RawOrderFill, 0, len(result.OrderFilledEvents))
	for _, e := range result.OrderFilledEvents {
		fills = append(fills, domain.RawOrderFill{
			EventID:           e.ID,
			Timestamp:         p.int64("timestamp", e.Timestamp),
			BlockNumber:       p.int64("blockNumber", e.BlockNumber),
			Maker:             e.Maker,
			MakerAssetID:      e.MakerAssetID,
			MakerAmountFilled: p.int64("makerAmountFilled", e.MakerAmountFilled),
			Taker:             e.Taker,
			TakerAssetID:      e.TakerAssetID,
			TakerAmountFilled: p.int64("takerAmountFilled", e.TakerAmountFilled),
			Fee:               p.int64("fee", e.Fee),
			TransactionHash:   e.TransactionHash,
		})
	}
	if p.err != nil {
		return nil, fmt.Errorf("goldsky: decode order fills: %w", p.err)
	}
	return fills, nil
}

// FetchSplitMerges returns PositionSplit and PositionsMerge events at or
// after the given timestamp as one signed stream: splits positive, merges
// negative. When either sub-query returns a full page the combined stream
// is trimmed to that sub-query's last timestamp, so the returned window
// never contains a gap that a cursor could advance over.
func (c *Client) FetchSplitMerges(ctx context.Context, since time.Time, first int) ([]domain.RawSplitMerge, error) {
	query := `
		query SplitMerges($since: BigInt!, $first: Int!) {
			splits(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				id
				transactionHash
				timestamp
				blockNumber
				stakeholder
				condition
				amount
			}
			merges(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				id
				transactionHash
				timestamp
				blockNumber
				stakeholder
				condition
				amount
			}
		}
	`

	respData, err := c.doQuery(ctx, query, sinceVars(since, first))
	if err != nil {
		return nil, fmt.Errorf("goldsky: fetch splits/merges: %w", err)
	}

	type rawEvent struct {
		ID              string `json:"id"`
		TransactionHash string `json:"transactionHash"`
		Timestamp       string `json:"timestamp"`
		BlockNumber     string `json:"blockNumber"`
		Stakeholder     string `json:"stakeholder"`
		Condition       string `json:"condition"`
		Amount          string `json:"amount"`
	}
	var result struct {
		Splits []rawEvent `json:"splits"`
		Merges []rawEvent `json:"merges"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("goldsky: decode splits/merges: %w", err)
	}

	p := &fieldParser{}
	splits := make([]domain.RawSplitMerge, 0, len(result.Splits))
	for _, e := range result.Splits {
		splits = append(splits, domain.RawSplitMerge{
			EventID:         e.ID,
			Timestamp:       p.int64("timestamp", e.Timestamp),
			BlockNumber:     p.int64("blockNumber", e.BlockNumber),
			Wallet:          e.Stakeholder,
			ConditionID:     e.Condition,
			Amount:          p.int64("amount", e.Amount),
			TransactionHash: e.TransactionHash,
		})
	}
	merges := make([]domain.RawSplitMerge, 0, len(result.Merges))
	for _, e := range result.Merges {
		merges = append(merges, domain.RawSplitMerge{
			EventID:         e.ID,
			Timestamp:       p.int64("timestamp", e.Timestamp),
			BlockNumber:     p.int64("blockNumber", e.BlockNumber),
			Wallet:          e.Stakeholder,
			ConditionID:     e.Condition,
			Amount:          -p.int64("amount", e.Amount),
			TransactionHash: e.TransactionHash,
		})
	}
	if p.err != nil {
		return nil, fmt.Errorf("goldsky: decode splits/merges: %w", p.err)
	}

	// The two sub-queries page independently, so when one fills its page
	// the other may reach further in time than data that has actually been
	// fetched. Trim the combined stream to the earliest capped sub-query's
	// last timestamp; anything beyond that horizon is re-fetched once the
	// caller's cursor catches up, so no event can be skipped.
	horizon := int64(math.MaxInt64)
	if len(splits) == first && first > 0 {
		horizon = splits[len(splits)-1].Timestamp
	}
	if len(merges) == first && first > 0 {
		if h := merges[len(merges)-1].Timestamp; h < horizon {
			horizon = h
		}
	}

	events := make([]domain.RawSplitMerge, 0, len(splits)+len(merges))
	for _, e := range splits {
		if e.Timestamp <= horizon {
			events = append(events, e)
		}
	}
	for _, e := range merges {
		if e.Timestamp <= horizon {
			events = append(events, e)
		}
	}
	return events, nil
}

// FetchCashLegs returns the condition-level USDC transfer legs recorded
// alongside splits and merges.
func (c *Client) FetchCashLegs(ctx context.Context, since time.Time, first int) ([]domain.RawCashLeg, error) {
	query := `
		query CashLegs($since: BigInt!, $first: Int!) {
			collateralFlows(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				id
				transactionHash
				timestamp
				blockNumber
				wallet
				condition
				amount
			}
		}
	`

	respData, err := c.doQuery(ctx, query, sinceVars(since, first))
	if err != nil {
		return nil, fmt.Errorf("goldsky: fetch cash legs: %w", err)
	}

	var result struct {
		CollateralFlows []struct {
			ID              string `json:"id"`
			TransactionHash string `json:"transactionHash"`
			Timestamp       string `json:"timestamp"`
			BlockNumber     string `json:"blockNumber"`
			Wallet          string `json:"wallet"`
			Condition       string `json:"condition"`
			Amount          string `json:"amount"`
		} `json:"collateralFlows"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("goldsky: decode cash legs: %w", err)
	}

	p := &fieldParser{}
	legs := make([]domain.RawCashLeg, 0, len(result.CollateralFlows))
	for _, e := range result.CollateralFlows {
		legs = append(legs, domain.RawCashLeg{
			EventID:         e.ID,
			Timestamp:       p.int64("timestamp", e.Timestamp),
			BlockNumber:     p.int64("blockNumber", e.BlockNumber),
			Wallet:          e.Wallet,
			ConditionID:     e.Condition,
			CashDelta:       p.int64("amount", e.Amount),
			TransactionHash: e.TransactionHash,
		})
	}
	if p.err != nil {
		return nil, fmt.Errorf("goldsky: decode cash legs: %w", p.err)
	}
	return legs, nil
}

// FetchConversions returns neg-risk conversion events: internal transfers
// between a market's outcome tokens and its linked pool.
func (c *Client) FetchConversions(ctx context.Context, since time.Time, first int) ([]domain.RawConversion, error) {
	query := `
		query Conversions($since: BigInt!, $first: Int!) {
			positionsConverteds(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				id
				transactionHash
				timestamp
				blockNumber
				stakeholder
				tokenId
				amount
			}
		}
	`

	respData, err := c.doQuery(ctx, query, sinceVars(since, first))
	if err != nil {
		return nil, fmt.Errorf("goldsky: fetch conversions: %w", err)
	}

	var result struct {
		PositionsConverteds []struct {
			ID              string `json:"id"`
			TransactionHash string `json:"transactionHash"`
			Timestamp       string `json:"timestamp"`
			BlockNumber     string `json:"blockNumber"`
			Stakeholder     string `json:"stakeholder"`
			TokenID         string `json:"tokenId"`
			Amount          string `json:"amount"`
		} `json:"positionsConverteds"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("goldsky: decode conversions: %w", err)
	}

	p := &fieldParser{}
	conversions := make([]domain.RawConversion, 0, len(result.PositionsConverteds))
	for _, e := range result.PositionsConverteds {
		conversions = append(conversions, domain.RawConversion{
			EventID:         e.ID,
			Timestamp:       p.int64("timestamp", e.Timestamp),
			BlockNumber:     p.int64("blockNumber", e.BlockNumber),
			Wallet:          e.Stakeholder,
			TokenID:         e.TokenID,
			Amount:          p.int64("amount", e.Amount),
			TransactionHash: e.TransactionHash,
		})
	}
	if p.err != nil {
		return nil, fmt.Errorf("goldsky: decode conversions: %w", p.err)
	}
	return conversions, nil
}

// FetchResolutions returns oracle ConditionResolution events: the payout
// vector reported for each resolved condition.
func (c *Client) FetchResolutions(ctx context.Context, since time.Time, first int) ([]domain.RawResolution, error) {
	query := `
		query Resolutions($since: BigInt!, $first: Int!) {
			conditionResolutions(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				transactionHash
				timestamp
				blockNumber
				condition
				payoutNumerators
				payoutDenominator
			}
		}
	`

	respData, err := c.doQuery(ctx, query, sinceVars(since, first))
	if err != nil {
		return nil, fmt.Errorf("goldsky: fetch resolutions: %w", err)
	}

	var result struct {
		ConditionResolutions []struct {
			TransactionHash   string   `json:"transactionHash"`
			Timestamp         string   `json:"timestamp"`
			BlockNumber       string   `json:"blockNumber"`
			Condition         string   `json:"condition"`
			PayoutNumerators  []string `json:"payoutNumerators"`
			PayoutDenominator string   `json:"payoutDenominator"`
		} `json:"conditionResolutions"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("goldsky: decode resolutions: %w", err)
	}

	p := &fieldParser{}
	resolutions := make([]domain.RawResolution, 0, len(result.ConditionResolutions))
	for _, e := range result.ConditionResolutions {
		numerators := make([]int64, 0, len(e.PayoutNumerators))
		for _, n := range e.PayoutNumerators {
			numerators = append(numerators, p.int64("payoutNumerators", n))
		}
		resolutions = append(resolutions, domain.RawResolution{
			ConditionID:       e.Condition,
			PayoutNumerators:  numerators,
			PayoutDenominator: p.int64("payoutDenominator", e.PayoutDenominator),
			Timestamp:         p.int64("timestamp", e.Timestamp),
			BlockNumber:       p.int64("blockNumber", e.BlockNumber),
			TransactionHash:   e.TransactionHash,
		})
	}
	if p.err != nil {
		return nil, fmt.Errorf("goldsky: decode resolutions: %w", p.err)
	}
	return resolutions, nil
}

// FetchConditions returns ConditionPreparation events at or after the given
// timestamp. The market syncer uses these to build token mappings ahead of
// the first trade.
func (c *Client) FetchConditions(ctx context.Context, since time.Time, first int) ([]domain.RawCondition, error) {
	query := `
		query Conditions($since: BigInt!, $first: Int!) {
			conditionPreparations(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				condition
				outcomeSlotCount
				timestamp
				blockNumber
			}
		}
	`

	respData, err := c.doQuery(ctx, query, sinceVars(since, first))
	if err != nil {
		return nil, fmt.Errorf("goldsky: fetch conditions: %w", err)
	}

	var result struct {
		ConditionPreparations []struct {
			Condition        string `json:"condition"`
			OutcomeSlotCount string `json:"outcomeSlotCount"`
			Timestamp        string `json:"timestamp"`
			BlockNumber      string `json:"blockNumber"`
		} `json:"conditionPreparations"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("goldsky: decode conditions: %w", err)
	}

	p := &fieldParser{}
	conditions := make([]domain.RawCondition, 0, len(result.ConditionPreparations))
	for _, e := range result.ConditionPreparations {
		conditions = append(conditions, domain.RawCondition{
			ConditionID:      e.Condition,
			OutcomeSlotCount: int(p.int64("outcomeSlotCount", e.OutcomeSlotCount)),
			Timestamp:        p.int64("timestamp", e.Timestamp),
			BlockNumber:      p.int64("blockNumber", e.BlockNumber),
		})
	}
	if p.err != nil {
		return nil, fmt.Errorf("goldsky: decode conditions: %w", p.err)
	}
	return conditions, nil
}

// FetchLatestBlock returns the latest block number indexed by the subgraph,
// used to measure ingestion lag.
func (c *Client) FetchLatestBlock(ctx context.Context) (int64, error) {
	query := `
		query LatestBlock {
			_meta {
				block {
					number
				}
			}
		}
	`

	respData, err := c.doQuery(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("goldsky: fetch latest block: %w", err)
	}

	var result struct {
		Meta struct {
			Block struct {
				Number int64 `json:"number"`
			} `json:"block"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return 0, fmt.Errorf("goldsky: decode latest block: %w", err)
	}
	return result.Meta.Block.Number, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func sinceVars(since time.Time, first int) map[string]any {
	return map[string]any{
		"since": strconv.FormatInt(since.Unix(), 10),
		"first": first,
	}
}

// fieldParser converts the subgraph's decimal string fields, capturing the
// first malformed value. A bad numeric fails the whole fetch rather than
// silently becoming a zero delta in the ledger.
type fieldParser struct {
	err error
}

func (p *fieldParser) int64(field, s string) int64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.err = fmt.Errorf("field %s: malformed numeric %q", field, s)
		return 0
	}
	return v
}

// doQuery executes a GraphQL query against the endpoint and returns the raw
// "data" field from the response.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	reqBody := graphqlRequest{
		Query:     query,
		Variables: variables,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}

	return gqlResp.Data, nil
}
