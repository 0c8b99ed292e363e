package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"

	"spendlens/src/models"
)

// PlaidClient implements Client on top of the Plaid API.
type PlaidClient struct {
	api *plaid.APIClient
}

func NewPlaidClient(api *plaid.APIClient) *PlaidClient {
	return &PlaidClient{api: api}
}

func (c *PlaidClient) LinkSandboxInstitution(ctx context.Context, institutionID string, products []string) (string, error) {
	initialProducts := make([]plaid.Products, 0, len(products))
	for _, p := range products {
		initialProducts = append(initialProducts, plaid.Products(p))
	}

	request := plaid.NewSandboxPublicTokenCreateRequest(institutionID, initialProducts)
	resp, httpResp, err := c.api.PlaidApi.SandboxPublicTokenCreate(ctx).SandboxPublicTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", fmt.Errorf("create sandbox public token: %w", toAggregatorError(err, httpResp))
	}

	return resp.GetPublicToken(), nil
}

func (c *PlaidClient) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, httpResp, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", fmt.Errorf("exchange public token: %w", toAggregatorError(err, httpResp))
	}

	return resp.GetAccessToken(), resp.GetItemId(), nil
}

func (c *PlaidClient) GetTransactions(ctx context.Context, accessToken string, dates DateRange, page PageOptions) ([]RawTransaction, int, error) {
	request := plaid.NewTransactionsGetRequest(
		accessToken,
		dates.Start.Format(models.DateLayout),
		dates.End.Format(models.DateLayout),
	)

	count := page.Count
	if count <= 0 {
		count = DefaultPageSize
	}
	options := plaid.NewTransactionsGetRequestOptions()
	options.SetCount(int32(count))
	if page.Offset > 0 {
		options.SetOffset(int32(page.Offset))
	}
	request.SetOptions(*options)

	resp, httpResp, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("get transactions (offset %d): %w", page.Offset, toAggregatorError(err, httpResp))
	}

	txns := resp.GetTransactions()
	records := make([]RawTransaction, 0, len(txns))
	for _, txn := range txns {
		rec, err := fromPlaidTransaction(txn)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	return records, int(resp.GetTotalTransactions()), nil
}

func fromPlaidTransaction(txn plaid.Transaction) (RawTransaction, error) {
	date, err := time.Parse(models.DateLayout, txn.GetDate())
	if err != nil {
		return RawTransaction{}, fmt.Errorf("transaction %s: invalid date %q: %w", txn.GetTransactionId(), txn.GetDate(), err)
	}

	return RawTransaction{
		ID:           txn.GetTransactionId(),
		Date:         date,
		Amount:       decimal.NewFromFloat(txn.GetAmount()),
		Category:     txn.GetCategory(),
		MerchantName: txn.GetMerchantName(),
		Pending:      txn.GetPending(),
	}, nil
}

type plaidErrorBody struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

// toAggregatorError decodes the Plaid error body carried by err. Errors with
// no decodable body (timeouts, connection failures) are returned unchanged.
func toAggregatorError(err error, httpResp *http.Response) error {
	var apiErr plaid.GenericOpenAPIError
	if !errors.As(err, &apiErr) {
		return err
	}

	var body plaidErrorBody
	if jsonErr := json.Unmarshal(apiErr.Body(), &body); jsonErr != nil || body.ErrorCode == "" {
		return err
	}

	aggErr := &AggregatorError{
		Type:      body.ErrorType,
		Code:      body.ErrorCode,
		Message:   body.ErrorMessage,
		RequestID: body.RequestID,
	}
	if httpResp != nil {
		aggErr.Status = httpResp.StatusCode
	}
	return aggErr
}
