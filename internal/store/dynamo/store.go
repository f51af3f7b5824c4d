// Package dynamo keeps products and orders in DynamoDB.
//
// Every record carries a version. A transaction remembers the version of each
// record it read and commits all of its writes with one TransactWriteItems
// call whose conditions fail if any of those records moved on. Order numbers
// are made unique with a claim item in the orders table.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/store"
)

const (
	SellerIndex   = "sellerId-createdAt-index"
	CustomerIndex = "customerEmail-createdAt-index"

	// maxTransactItems is the TransactWriteItems limit.
	maxTransactItems = 100
	maxBatchGetKeys  = 100
	maxBatchRounds   = 5
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type Tables struct {
	Products string
	Orders   string
}

type Store struct {
	api    API
	tables Tables
}

func NewStore(api API, tables Tables) *Store {
	return &Store{api: api, tables: tables}
}

func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	tx := &dynamoTx{
		s:        s,
		products: make(map[string]productRead),
		orders:   make(map[string]orderRead),
		written:  make(map[string]bool),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

type productRead struct {
	item   productItem
	exists bool
}

type orderRead struct {
	item   orderItem
	exists bool
}

type dynamoTx struct {
	s        *Store
	products map[string]productRead
	orders   map[string]orderRead

	writes []types.TransactWriteItem
	// claims marks the positions in writes that are order-number claims.
	claims  map[int]string
	written map[string]bool
}

func productKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func orderKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}}
}

func (t *dynamoTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	read, ok := t.products[id]
	if !ok {
		out, err := t.s.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(t.s.tables.Products),
			Key:            productKey(id),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("get product %s: %w", id, err)
		}
		if out.Item != nil {
			if err := attributevalue.UnmarshalMap(out.Item, &read.item); err != nil {
				return nil, fmt.Errorf("decode product %s: %w", id, err)
			}
			read.exists = true
		}
		t.products[id] = read
	}
	if !read.exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", id))
	}
	return fromProductItem(read.item)
}

func (t *dynamoTx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if strings.HasPrefix(id, numberClaimPrefix) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	read, ok := t.orders[id]
	if !ok {
		out, err := t.s.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(t.s.tables.Orders),
			Key:            orderKey(id),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("get order %s: %w", id, err)
		}
		if out.Item != nil {
			if err := attributevalue.UnmarshalMap(out.Item, &read.item); err != nil {
				return nil, fmt.Errorf("decode order %s: %w", id, err)
			}
			read.exists = true
		}
		t.orders[id] = read
	}
	if !read.exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	return fromOrderItem(read.item)
}

func (t *dynamoTx) CreateOrder(_ context.Context, o *domain.Order) error {
	item, err := attributevalue.MarshalMap(toOrderItem(o, 1))
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	claim, err := attributevalue.MarshalMap(numberClaim{PK: numberClaimPrefix + o.OrderNumber, OrderID: o.ID})
	if err != nil {
		return fmt.Errorf("encode order number %s: %w", o.OrderNumber, err)
	}

	t.add("order#"+o.ID, types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(t.s.tables.Orders),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	}})
	if t.claims == nil {
		t.claims = make(map[int]string)
	}
	t.claims[len(t.writes)] = o.OrderNumber
	t.add("claim#"+o.OrderNumber, types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(t.s.tables.Orders),
		Item:                claim,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	}})
	return nil
}

func (t *dynamoTx) SetProductStock(_ context.Context, productID string, stock int, updatedAt time.Time) error {
	read, ok := t.products[productID]
	if !ok {
		return fmt.Errorf("product %s written without being read", productID)
	}
	if !read.exists {
		return apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", productID))
	}
	if stock < 0 {
		return fmt.Errorf("product %s: stock would become %d", productID, stock)
	}

	t.add("product#"+productID, types.TransactWriteItem{Update: &types.Update{
		TableName:                aws.String(t.s.tables.Products),
		Key:                      productKey(productID),
		UpdateExpression:         aws.String("SET #stock = :stock, #updatedAt = :updatedAt, #version = :next"),
		ConditionExpression:      aws.String(versionCondition(read.item.Version)),
		ExpressionAttributeNames: map[string]string{"#stock": "stock", "#updatedAt": "updatedAt", "#version": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":stock":     &types.AttributeValueMemberN{Value: fmt.Sprint(stock)},
			":updatedAt": &types.AttributeValueMemberS{Value: formatTime(updatedAt)},
			":next":      &types.AttributeValueMemberN{Value: fmt.Sprint(read.item.Version + 1)},
			":version":   &types.AttributeValueMemberN{Value: fmt.Sprint(read.item.Version)},
		},
	}})
	return nil
}

func (t *dynamoTx) UpdateOrder(_ context.Context, o *domain.Order) error {
	read, ok := t.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %s written without being read", o.ID)
	}
	if !read.exists {
		return apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", o.ID))
	}

	// Start from the stored record so only the mutable fields change.
	next := read.item
	mutable := toOrderItem(o, read.item.Version+1)
	next.Status = mutable.Status
	next.PaymentStatus = mutable.PaymentStatus
	next.Tracking = mutable.Tracking
	next.UpdatedAt = mutable.UpdatedAt
	next.ShippedAt = mutable.ShippedAt
	next.DeliveredAt = mutable.DeliveredAt
	next.Version = mutable.Version

	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	t.add("order#"+o.ID, types.TransactWriteItem{Put: &types.Put{
		TableName:                aws.String(t.s.tables.Orders),
		Item:                     item,
		ConditionExpression:      aws.String("#version = :version"),
		ExpressionAttributeNames: map[string]string{"#version": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: fmt.Sprint(read.item.Version)},
		},
	}})
	return nil
}

func (t *dynamoTx) add(key string, w types.TransactWriteItem) {
	t.writes = append(t.writes, w)
	t.written[key] = true
}

// readChecks guards every record that was read but not written.
func (t *dynamoTx) readChecks() []types.TransactWriteItem {
	var checks []types.TransactWriteItem
	for id, read := range t.products {
		if t.written["product#"+id] {
			continue
		}
		checks = append(checks, unchanged(t.s.tables.Products, productKey(id), read.exists, read.item.Version))
	}
	for id, read := range t.orders {
		if t.written["order#"+id] {
			continue
		}
		checks = append(checks, unchanged(t.s.tables.Orders, orderKey(id), read.exists, read.item.Version))
	}
	return checks
}

func unchanged(table string, key map[string]types.AttributeValue, exists bool, version int64) types.TransactWriteItem {
	check := &types.ConditionCheck{TableName: aws.String(table), Key: key}
	if !exists {
		field := "pk"
		if _, ok := key["id"]; ok {
			field = "id"
		}
		check.ConditionExpression = aws.String("attribute_not_exists(" + field + ")")
		return types.TransactWriteItem{ConditionCheck: check}
	}
	check.ConditionExpression = aws.String(versionCondition(version))
	check.ExpressionAttributeNames = map[string]string{"#version": "version"}
	check.ExpressionAttributeValues = map[string]types.AttributeValue{
		":version": &types.AttributeValueMemberN{Value: fmt.Sprint(version)},
	}
	return types.TransactWriteItem{ConditionCheck: check}
}

// versionCondition treats a record without a version attribute, such as a
// product loaded by another system, as version 0.
func versionCondition(version int64) string {
	if version == 0 {
		return "attribute_not_exists(#version) OR #version = :version"
	}
	return "#version = :version"
}

func (t *dynamoTx) commit(ctx context.Context) error {
	if len(t.writes) == 0 {
		return nil
	}
	items := append(t.writes, t.readChecks()...)
	if len(items) > maxTransactItems {
		return fmt.Errorf("transaction touches %d records, limit is %d", len(items), maxTransactItems)
	}

	_, err := t.s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return t.classify(err)
	}
	return nil
}

func (t *dynamoTx) classify(err error) error {
	var cancelled *types.TransactionCanceledException
	if errors.As(err, &cancelled) {
		for i, reason := range cancelled.CancellationReasons {
			number, isClaim := t.claims[i]
			if isClaim && aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return fmt.Errorf("order number %s: %w", number, apperrors.ErrDuplicateOrderNumber)
			}
		}
		return fmt.Errorf("transaction cancelled: %w", apperrors.ErrTxConflict)
	}
	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("transaction conflict: %w", apperrors.ErrTxConflict)
	}
	return fmt.Errorf("transact write: %w", err)
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	if strings.HasPrefix(id, numberClaimPrefix) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Orders),
		Key:            orderKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	var item orderItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", id, err)
	}
	return fromOrderItem(item)
}

func (s *Store) ListOrdersBySeller(ctx context.Context, sellerID string, page store.Page) ([]domain.Order, error) {
	return s.queryIndex(ctx, SellerIndex, "sellerId", sellerID, page)
}

func (s *Store) ListOrdersByCustomerEmail(ctx context.Context, email string, page store.Page) ([]domain.Order, error) {
	return s.queryIndex(ctx, CustomerIndex, "customerEmail", email, page)
}

func (s *Store) queryIndex(ctx context.Context, index, attr, value string, page store.Page) ([]domain.Order, error) {
	page = page.Normalize()
	paginator := dynamodb.NewQueryPaginator(s.api, &dynamodb.QueryInput{
		TableName:                aws.String(s.tables.Orders),
		IndexName:                aws.String(index),
		KeyConditionExpression:   aws.String("#k = :v"),
		ExpressionAttributeNames: map[string]string{"#k": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(page.Offset + page.Limit)),
	})

	orders := make([]domain.Order, 0, page.Limit)
	skip := page.Offset
	for paginator.HasMorePages() && len(orders) < page.Limit {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", index, err)
		}
		for _, raw := range out.Items {
			if skip > 0 {
				skip--
				continue
			}
			var item orderItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("decode order: %w", err)
			}
			o, err := fromOrderItem(item)
			if err != nil {
				return nil, err
			}
			orders = append(orders, *o)
			if len(orders) == page.Limit {
				break
			}
		}
	}
	return orders, nil
}

// FindProductsByIDs returns the products that exist, in the order requested.
func (s *Store) FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	found := make(map[string]domain.Product, len(unique))
	for start := 0; start < len(unique); start += maxBatchGetKeys {
		end := min(start+maxBatchGetKeys, len(unique))
		if err := s.batchGet(ctx, unique[start:end], found); err != nil {
			return nil, err
		}
	}

	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *Store) batchGet(ctx context.Context, ids []string, found map[string]domain.Product) error {
	keys := make([]map[string]types.AttributeValue, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	request := map[string]types.KeysAndAttributes{
		s.tables.Products: {Keys: keys, ConsistentRead: aws.Bool(true)},
	}

	for round := 0; len(request) > 0; round++ {
		if round == maxBatchRounds {
			return fmt.Errorf("batch get products: keys still unprocessed after %d rounds", maxBatchRounds)
		}
		out, err := s.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return fmt.Errorf("batch get products: %w", err)
		}
		for _, raw := range out.Responses[s.tables.Products] {
			var item productItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return fmt.Errorf("decode product: %w", err)
			}
			p, err := fromProductItem(item)
			if err != nil {
				return err
			}
			found[p.ID] = *p
		}
		request = out.UnprocessedKeys
	}
	return nil
}
