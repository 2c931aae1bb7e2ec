package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"astra/errs"
	"astra/logger"
	"astra/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoAPI は使用する DynamoDB 操作だけを抜き出したもの
type dynamoAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

const (
	attrSessionKey     = "SessionKey"
	attrMessageIndex   = "MessageIndex"
	batchWriteLimit    = 25
	transactWriteLimit = 100
)

// DynamoTurnStore は会話ターンを DynamoDB に保存する
// パーティションキー: "<user_id>#<session_id>", ソートキー: MessageIndex
type DynamoTurnStore struct {
	client dynamoAPI
	table  string
}

// NewDynamoClient はローカル/互換エンドポイント向けのクライアントを作る
func NewDynamoClient(ctx context.Context, endpoint, region string) (*dynamodb.Client, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: endpoint,
		}, nil
	})

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID: "dummy", SecretAccessKey: "dummy", SessionToken: "dummy",
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load dynamodb config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg), nil
}

func NewDynamoTurnStore(client dynamoAPI, table string) *DynamoTurnStore {
	return &DynamoTurnStore{client: client, table: table}
}

// EnsureTable はテーブルがなければ作成する
func (d *DynamoTurnStore) EnsureTable(ctx context.Context) error {
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(attrSessionKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String(attrMessageIndex),
				AttributeType: types.ScalarAttributeTypeN,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(attrSessionKey),
				KeyType:       types.KeyTypeHash, // パーティションキー
			},
			{
				AttributeName: aws.String(attrMessageIndex),
				KeyType:       types.KeyTypeRange, // ソートキー
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		logger.Debug("dynamodb table already exists", "table", d.table)
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.ErrDynamoOperation, err)
	}
	return nil
}

func sessionKey(userID int64, sessionID string) string {
	return strconv.FormatInt(userID, 10) + "#" + sessionID
}

// AppendTurns はユーザー発話と応答を1トランザクションで書き込む
// どれかの message_index が使用済みなら何も書かない
func (d *DynamoTurnStore) AppendTurns(ctx context.Context, turns []models.Conversation) error {
	items := make([]types.TransactWriteItem, 0, len(turns))
	for i := range turns {
		turn := &turns[i]
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now().UTC()
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(d.table),
				Item:      turnToItem(turn),
				// 同じ message_index の上書きを防ぐ
				ConditionExpression: aws.String("attribute_not_exists(" + attrMessageIndex + ")"),
			},
		})
	}

	for start := 0; start < len(items); start += transactWriteLimit {
		end := min(start+transactWriteLimit, len(items))
		_, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		})
		if err != nil {
			return transactError(err)
		}
	}
	return nil
}

func transactError(err error) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, r := range canceled.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return errs.Wrap(errs.ErrDuplicateMessageIndex, err)
			}
		}
	}
	return errs.Wrap(errs.ErrDynamoOperation, err)
}

func turnToItem(turn *models.Conversation) map[string]types.AttributeValue {
	topics := make([]types.AttributeValue, 0, len(turn.Topics))
	for _, t := range turn.Topics {
		topics = append(topics, &types.AttributeValueMemberS{Value: t})
	}
	return map[string]types.AttributeValue{
		attrSessionKey:     &types.AttributeValueMemberS{Value: sessionKey(turn.UserID, turn.SessionID)},
		attrMessageIndex:   &types.AttributeValueMemberN{Value: strconv.Itoa(turn.MessageIndex)},
		"UserID":           &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.UserID, 10)},
		"SessionID":        &types.AttributeValueMemberS{Value: turn.SessionID},
		"Role":             &types.AttributeValueMemberS{Value: turn.Role},
		"Content":          &types.AttributeValueMemberS{Value: turn.Content},
		"DetectedLanguage": &types.AttributeValueMemberS{Value: turn.DetectedLanguage},
		"Intent":           &types.AttributeValueMemberS{Value: turn.Intent},
		"Topics":           &types.AttributeValueMemberL{Value: topics},
		"Timestamp":        &types.AttributeValueMemberS{Value: turn.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

func (d *DynamoTurnStore) RecentTurns(ctx context.Context, userID int64, sessionID string, limit int) ([]models.Conversation, error) {
	result, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String(attrSessionKey + " = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: sessionKey(userID, sessionID)},
		},
		ScanIndexForward: aws.Bool(false), // 新しい順にソート
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrDynamoOperation, err)
	}

	turns := make([]models.Conversation, 0, len(result.Items))
	for i := len(result.Items) - 1; i >= 0; i-- {
		turns = append(turns, itemToTurn(result.Items[i]))
	}
	return turns, nil
}

func (d *DynamoTurnStore) SessionTurns(ctx context.Context, userID int64, sessionID string) ([]models.Conversation, error) {
	turns := make([]models.Conversation, 0)
	var startKey map[string]types.AttributeValue
	for {
		result, err := d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.table),
			KeyConditionExpression: aws.String(attrSessionKey + " = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: sessionKey(userID, sessionID)},
			},
			ScanIndexForward:  aws.Bool(true), // 古い順に並び替え
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, errs.Wrap(errs.ErrDynamoOperation, err)
		}
		for _, item := range result.Items {
			turns = append(turns, itemToTurn(item))
		}
		if len(result.LastEvaluatedKey) == 0 {
			return turns, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

// DeleteSessions はユーザー削除時のカスケードを代行する
func (d *DynamoTurnStore) DeleteSessions(ctx context.Context, userID int64, sessionIDs []string) error {
	for _, sessionID := range sessionIDs {
		turns, err := d.SessionTurns(ctx, userID, sessionID)
		if err != nil {
			return err
		}

		requests := make([]types.WriteRequest, 0, len(turns))
		for _, t := range turns {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						attrSessionKey:   &types.AttributeValueMemberS{Value: sessionKey(userID, sessionID)},
						attrMessageIndex: &types.AttributeValueMemberN{Value: strconv.Itoa(t.MessageIndex)},
					},
				},
			})
		}

		for start := 0; start < len(requests); start += batchWriteLimit {
			end := min(start+batchWriteLimit, len(requests))
			if err := d.batchDelete(ctx, requests[start:end]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *DynamoTurnStore) batchDelete(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{d.table: requests}
	for attempt := 0; attempt < 5 && len(pending[d.table]) > 0; attempt++ {
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return errs.Wrap(errs.ErrDynamoOperation, err)
		}
		pending = out.UnprocessedItems
		if len(pending[d.table]) > 0 {
			time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
		}
	}
	if len(pending[d.table]) > 0 {
		return errs.Wrap(errs.ErrDynamoOperation, fmt.Errorf("%d delete requests left unprocessed", len(pending[d.table])))
	}
	return nil
}

func itemToTurn(item map[string]types.AttributeValue) models.Conversation {
	c := models.Conversation{
		SessionID:        attrString(item, "SessionID"),
		Role:             attrString(item, "Role"),
		Content:          attrString(item, "Content"),
		DetectedLanguage: attrString(item, "DetectedLanguage"),
		Intent:           attrString(item, "Intent"),
	}
	c.UserID, _ = strconv.ParseInt(attrNumber(item, "UserID"), 10, 64)
	c.MessageIndex, _ = strconv.Atoi(attrNumber(item, attrMessageIndex))
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, attrString(item, "Timestamp"))

	if l, ok := item["Topics"].(*types.AttributeValueMemberL); ok {
		for _, v := range l.Value {
			if s, ok := v.(*types.AttributeValueMemberS); ok {
				c.Topics = append(c.Topics, s.Value)
			}
		}
	}
	return c
}

func attrString(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func attrNumber(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return v.Value
	}
	return "0"
}
