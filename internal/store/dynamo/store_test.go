package dynamo

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/store"
)

var tables = Tables{Products: "products", Orders: "orders"}

type fakeAPI struct {
	items    map[string]map[string]types.AttributeValue
	pages    [][]map[string]types.AttributeValue
	writeErr error

	writes       []*dynamodb.TransactWriteItemsInput
	batchCalls   int
	unprocessed  map[string]types.KeysAndAttributes
	queryIndexes []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(table string, key map[string]types.AttributeValue) string {
	for _, v := range key {
		return table + "/" + v.(*types.AttributeValueMemberS).Value
	}
	return table
}

func (f *fakeAPI) put(t *testing.T, table, id string, v any) {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	f.items[table+"/"+id] = item
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(aws.ToString(in.TableName), in.Key)]}, nil
}

func (f *fakeAPI) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.batchCalls++
	out := &dynamodb.BatchGetItemOutput{Responses: make(map[string][]map[string]types.AttributeValue)}
	for table, ka := range in.RequestItems {
		for _, key := range ka.Keys {
			if item, ok := f.items[keyOf(table, key)]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	if f.batchCalls == 1 && f.unprocessed != nil {
		out.UnprocessedKeys = f.unprocessed
	}
	return out, nil
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryIndexes = append(f.queryIndexes, aws.ToString(in.IndexName))
	page := 0
	if start, ok := in.ExclusiveStartKey["page"]; ok {
		page, _ = strconv.Atoi(start.(*types.AttributeValueMemberN).Value)
	}
	out := &dynamodb.QueryOutput{Items: f.pages[page]}
	if page+1 < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"page": &types.AttributeValueMemberN{Value: strconv.Itoa(page + 1)},
		}
	}
	return out, nil
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.writes = append(f.writes, in)
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

var created = time.Date(2026, 10, 14, 9, 30, 0, 123456789, time.UTC)

func sampleOrder() *domain.Order {
	shipped := created.Add(2 * time.Hour)
	return &domain.Order{
		ID:          "o1",
		OrderNumber: "ORD-20261014-001",
		SellerID:    "seller-a",
		Customer: domain.Customer{
			Name:    "Ana",
			Email:   "ana@example.com",
			Phone:   "555-0100",
			Address: domain.Address{Street: "1 Main", City: "Lima", PostalCode: "15001", Country: "PE"},
		},
		Items: []domain.LineItem{{
			ProductID:   "p1",
			ProductName: "Kettle",
			UnitPrice:   decimal.RequireFromString("50.00"),
			Quantity:    2,
			LineTotal:   decimal.RequireFromString("100.00"),
		}},
		Subtotal:      decimal.RequireFromString("100.00"),
		Shipping:      decimal.RequireFromString("15.00"),
		Tax:           decimal.RequireFromString("18.00"),
		Total:         decimal.RequireFromString("133.00"),
		Status:        domain.OrderStatusShipped,
		PaymentStatus: domain.PaymentStatusPaid,
		PaymentMethod: domain.PaymentMethodCard,
		Tracking:      &domain.Tracking{Carrier: "DHL", TrackingNumber: "TRK1"},
		CreatedAt:     created,
		UpdatedAt:     shipped,
		ShippedAt:     &shipped,
	}
}

func TestOrderItem_RoundTrip(t *testing.T) {
	want := sampleOrder()

	raw, err := attributevalue.MarshalMap(toOrderItem(want, 4))
	require.NoError(t, err)
	var item orderItem
	require.NoError(t, attributevalue.UnmarshalMap(raw, &item))
	assert.Equal(t, int64(4), item.Version)

	got, err := fromOrderItem(item)
	require.NoError(t, err)
	assert.Equal(t, want.OrderNumber, got.OrderNumber)
	assert.Equal(t, want.Customer, got.Customer)
	assert.Equal(t, want.Tracking, got.Tracking)
	assert.True(t, want.Total.Equal(got.Total))
	assert.True(t, want.Items[0].UnitPrice.Equal(got.Items[0].UnitPrice))
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.ShippedAt)
	assert.True(t, want.ShippedAt.Equal(*got.ShippedAt))
	assert.Nil(t, got.DeliveredAt)
}

func TestFormatTime_SortsLexically(t *testing.T) {
	early := formatTime(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	late := formatTime(time.Date(2026, 10, 14, 9, 0, 0, 500, time.UTC))
	assert.Len(t, early, len(late))
	assert.Less(t, early, late)
}

func TestRunInTx_WritesCarryVersionConditions(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.put(t, "products", "p1", productItem{ID: "p1", SellerID: "seller-a", Name: "Kettle", Price: "50", Stock: 10, Version: 3})
	api.put(t, "products", "p2", productItem{ID: "p2", SellerID: "seller-a", Name: "Toaster", Price: "20", Stock: 1, Version: 7})
	s := NewStore(api, tables)

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p1, err := tx.GetProduct(ctx, "p1")
		require.NoError(t, err)
		_, err = tx.GetProduct(ctx, "p2")
		require.NoError(t, err)
		require.NoError(t, tx.CreateOrder(ctx, sampleOrder()))
		return tx.SetProductStock(ctx, "p1", p1.Stock-2, created)
	})
	require.NoError(t, err)

	require.Len(t, api.writes, 1)
	items := api.writes[0].TransactItems
	require.Len(t, items, 4)

	require.NotNil(t, items[0].Put)
	assert.Equal(t, "attribute_not_exists(pk)", aws.ToString(items[0].Put.ConditionExpression))
	require.NotNil(t, items[1].Put)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "number#ORD-20261014-001"}, items[1].Put.Item["pk"])

	update := items[2].Update
	require.NotNil(t, update)
	assert.Equal(t, "#version = :version", aws.ToString(update.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, update.ExpressionAttributeValues[":version"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "8"}, update.ExpressionAttributeValues[":stock"])

	check := items[3].ConditionCheck
	require.NotNil(t, check)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "p2"}, check.Key["id"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "7"}, check.ExpressionAttributeValues[":version"])
}

func TestRunInTx_MissingReadMustStayMissing(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.put(t, "orders", "o1", toOrderItem(sampleOrder(), 2))
	s := NewStore(api, tables)

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetOrder(ctx, "o1")
		require.NoError(t, err)
		_, err = tx.GetProduct(ctx, "gone")
		_, ok := apperrors.IsNotFoundError(err)
		require.True(t, ok)
		o.Status = domain.OrderStatusDelivered
		return tx.UpdateOrder(ctx, o)
	})
	require.NoError(t, err)

	items := api.writes[0].TransactItems
	require.Len(t, items, 2)
	require.NotNil(t, items[1].ConditionCheck)
	assert.Equal(t, "attribute_not_exists(id)", aws.ToString(items[1].ConditionCheck.ConditionExpression))
}

func TestRunInTx_ReadOnlyDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.put(t, "products", "p1", productItem{ID: "p1", Price: "50", Stock: 1, Version: 1})
	s := NewStore(api, tables)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetProduct(ctx, "p1")
		return err
	}))
	assert.Empty(t, api.writes)
}

func TestUpdateOrder_KeepsImmutableFields(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.put(t, "orders", "o1", toOrderItem(sampleOrder(), 2))
	s := NewStore(api, tables)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetOrder(ctx, "o1")
		require.NoError(t, err)
		o.Status = domain.OrderStatusDelivered
		o.Total = decimal.NewFromInt(1)
		o.SellerID = "tampered"
		return tx.UpdateOrder(ctx, o)
	}))

	put := api.writes[0].TransactItems[0].Put
	require.NotNil(t, put)
	var written orderItem
	require.NoError(t, attributevalue.UnmarshalMap(put.Item, &written))
	assert.Equal(t, "delivered", written.Status)
	assert.Equal(t, "133", written.Total)
	assert.Equal(t, "seller-a", written.SellerID)
	assert.Equal(t, int64(3), written.Version)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "2"}, put.ExpressionAttributeValues[":version"])
}

func TestSetProductStock_RequiresPriorRead(t *testing.T) {
	s := NewStore(newFakeAPI(), tables)
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.SetProductStock(ctx, "p1", 1, created)
	})
	assert.Error(t, err)
}

func TestCommit_ClassifiesCancellations(t *testing.T) {
	failed := aws.String("ConditionalCheckFailed")
	none := aws.String("None")

	cases := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name: "order number taken",
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: none}, {Code: failed}, {Code: none},
			}},
			wantErr: apperrors.ErrDuplicateOrderNumber,
		},
		{
			name: "stock moved on",
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: none}, {Code: none}, {Code: failed},
			}},
			wantErr: apperrors.ErrTxConflict,
		},
		{
			name:    "concurrent transaction",
			err:     &types.TransactionConflictException{},
			wantErr: apperrors.ErrTxConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			api := newFakeAPI()
			api.put(t, "products", "p1", productItem{ID: "p1", Price: "50", Stock: 5, Version: 1})
			api.writeErr = tc.err
			s := NewStore(api, tables)

			err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				p, err := tx.GetProduct(ctx, "p1")
				require.NoError(t, err)
				require.NoError(t, tx.CreateOrder(ctx, sampleOrder()))
				return tx.SetProductStock(ctx, "p1", p.Stock-1, created)
			})
			assert.ErrorIs(t, err, tc.wantErr)
			assert.True(t, apperrors.IsRetryable(err))
		})
	}
}

func TestCommit_OtherErrorsAreNotRetryable(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.put(t, "products", "p1", productItem{ID: "p1", Price: "50", Stock: 5, Version: 1})
	api.writeErr = &types.ResourceNotFoundException{}
	s := NewStore(api, tables)

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetProduct(ctx, "p1")
		require.NoError(t, err)
		return tx.SetProductStock(ctx, "p1", 4, created)
	})
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestFindProductsByIDs_RetriesUnprocessedKeys(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.put(t, "products", "p1", productItem{ID: "p1", Price: "50", Stock: 5})
	api.put(t, "products", "p2", productItem{ID: "p2", Price: "20", Stock: 1})
	api.unprocessed = map[string]types.KeysAndAttributes{
		"products": {Keys: []map[string]types.AttributeValue{productKey("p2")}},
	}
	s := NewStore(api, tables)

	products, err := s.FindProductsByIDs(ctx, []string{"p2", "missing", "p1"})
	require.NoError(t, err)
	assert.Equal(t, 2, api.batchCalls)
	require.Len(t, products, 2)
	assert.Equal(t, "p2", products[0].ID)
	assert.Equal(t, "p1", products[1].ID)
}

func TestListOrdersBySeller_PagesAndSkipsOffset(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	page := func(ids ...string) []map[string]types.AttributeValue {
		var out []map[string]types.AttributeValue
		for _, id := range ids {
			o := sampleOrder()
			o.ID = id
			item, err := attributevalue.MarshalMap(toOrderItem(o, 1))
			require.NoError(t, err)
			out = append(out, item)
		}
		return out
	}
	api.pages = [][]map[string]types.AttributeValue{page("o5", "o4"), page("o3", "o2"), page("o1")}
	s := NewStore(api, tables)

	orders, err := s.ListOrdersBySeller(ctx, "seller-a", store.Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o4", orders[0].ID)
	assert.Equal(t, "o3", orders[1].ID)
	assert.Equal(t, []string{SellerIndex, SellerIndex}, api.queryIndexes)
}

func TestFindOrderByID_NotFound(t *testing.T) {
	s := NewStore(newFakeAPI(), tables)

	_, err := s.FindOrderByID(context.Background(), "nope")
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)

	_, err = s.FindOrderByID(context.Background(), "number#ORD-1")
	_, ok = apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestSetProductStock_UnversionedProduct(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.items["products/p1"] = map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: "p1"},
		"price": &types.AttributeValueMemberS{Value: "12.5"},
		"stock": &types.AttributeValueMemberN{Value: "4"},
	}
	s := NewStore(api, tables)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProduct(ctx, "p1")
		require.NoError(t, err)
		return tx.SetProductStock(ctx, "p1", p.Stock-1, created)
	}))

	update := api.writes[0].TransactItems[0].Update
	require.NotNil(t, update)
	assert.Equal(t, "attribute_not_exists(#version) OR #version = :version", aws.ToString(update.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, update.ExpressionAttributeValues[":next"])
}
