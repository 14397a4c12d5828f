package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pyama86/ticketbot/domain/model"
)

type DynamoDB struct {
	db *dynamodb.Client
}

var tableNamePrefix = "ticketbot"
var ticketTableName = tableNamePrefix + "_tickets"
var autocloseTableName = tableNamePrefix + "_autoclose_tasks"
var counterTableName = tableNamePrefix + "_counters"

func NewDynamoDB() (*DynamoDB, error) {
	if os.Getenv("DYNAMO_TABLE_NAME_PREFIX") != "" {
		tableNamePrefix = os.Getenv("DYNAMO_TABLE_NAME_PREFIX")
		ticketTableName = tableNamePrefix + "_tickets"
		autocloseTableName = tableNamePrefix + "_autoclose_tasks"
		counterTableName = tableNamePrefix + "_counters"
	}
	var db *dynamodb.Client
	if os.Getenv("DYNAMO_LOCAL") != "" {
		cfg, err := config.LoadDefaultConfig(context.TODO(),
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		endpoint := "http://localhost:8000"
		if os.Getenv("DYNAMO_ENDPOINT") != "" {
			endpoint = os.Getenv("DYNAMO_ENDPOINT")
		}
		db = dynamodb.NewFromConfig(cfg,
			func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			},
		)
	} else {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg)
	}
	d := &DynamoDB{
		db: db,
	}
	if os.Getenv("DYNAMO_LOCAL") != "" {
		if err := d.EnsureTable(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

const (
	waitInterval = 2 * time.Second // ポーリング間隔
	maxRetries   = 30              // 最大リトライ回数 (30回 = 約1分)
)

func (d *DynamoDB) EnsureTable() error {
	for _, in := range tableDefinitions() {
		if err := d.ensureSingleTable(in); err != nil {
			return fmt.Errorf("failed to ensure table %s: %v", aws.ToString(in.TableName), err)
		}
	}
	return nil
}

func (d *DynamoDB) ensureSingleTable(in *dynamodb.CreateTableInput) error {
	_, err := d.db.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
		TableName: in.TableName,
	})
	if err == nil {
		// テーブルが既に存在する
		return nil
	}

	if _, err := d.db.CreateTable(context.TODO(), in); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	// テーブルがACTIVEになるまで待機
	for i := 0; i < maxRetries; i++ {
		out, err := d.db.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
			TableName: in.TableName,
		})
		if err != nil {
			return fmt.Errorf("failed to describe table: %v", err)
		}

		if out.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		time.Sleep(waitInterval)
	}

	return fmt.Errorf("table creation timed out")
}

func tableDefinitions() []*dynamodb.CreateTableInput {
	throughput := &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(5),
		WriteCapacityUnits: aws.Int64(5),
	}
	return []*dynamodb.CreateTableInput{
		{
			TableName: aws.String(ticketTableName),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("channel_id"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("channel_id"), KeyType: types.KeyTypeHash},
			},
			ProvisionedThroughput: throughput,
		},
		{
			TableName: aws.String(autocloseTableName),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("channel_id"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("kind"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("channel_id"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("kind"), KeyType: types.KeyTypeRange},
			},
			ProvisionedThroughput: throughput,
		},
		{
			TableName: aws.String(counterTableName),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("name"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("name"), KeyType: types.KeyTypeHash},
			},
			ProvisionedThroughput: throughput,
		},
	}
}

// NextTicketNumber uses an atomic counter item; the SQL store uses an
// auto-increment table, so numbers are global rather than per guild in both.
func (d *DynamoDB) NextTicketNumber(guildID string) (uint, error) {
	out, err := d.db.UpdateItem(context.TODO(), &dynamodb.UpdateItemInput{
		TableName: aws.String(counterTableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: "ticket_number"},
		},
		UpdateExpression: aws.String("ADD #v :one SET last_guild_id = :guild"),
		ExpressionAttributeNames: map[string]string{
			"#v": "value",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":guild": &types.AttributeValueMemberS{Value: guildID},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	n, err := getNumberValue(out.Attributes, "value")
	if err != nil {
		return 0, err
	}
	return uint(n), nil
}

func (d *DynamoDB) SaveTicket(ticket *model.Ticket) error {
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = timeNow()
	}
	item, err := ticketToItem(ticket)
	if err != nil {
		return err
	}
	_, err = d.db.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(ticketTableName),
		Item:      item,
	})
	return err
}

func (d *DynamoDB) GetTicket(channelID string) (*model.Ticket, error) {
	result, err := d.db.GetItem(context.TODO(), &dynamodb.GetItemInput{
		TableName: aws.String(ticketTableName),
		Key: map[string]types.AttributeValue{
			"channel_id": &types.AttributeValueMemberS{Value: channelID},
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, nil
	}
	return itemToTicket(result.Item)
}

func (d *DynamoDB) GetOpenTickets(guildID string) ([]model.Ticket, error) {
	var tickets []model.Ticket
	input := &dynamodb.ScanInput{
		TableName:        aws.String(ticketTableName),
		FilterExpression: aws.String("guild_id = :guild_id AND #s = :status"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":guild_id": &types.AttributeValueMemberS{Value: guildID},
			":status":   &types.AttributeValueMemberS{Value: string(model.TicketOpen)},
		},
	}
	err := d.scan(input, func(item map[string]types.AttributeValue) error {
		t, err := itemToTicket(item)
		if err != nil {
			return err
		}
		tickets = append(tickets, *t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Dynamoでうまいことソートできないのでここでソート
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].Number < tickets[j].Number
	})
	return tickets, nil
}

func (d *DynamoDB) SaveAutocloseTask(task *model.AutocloseTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = timeNow()
	}
	_, err := d.db.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(autocloseTableName),
		Item:      taskToItem(task),
	})
	return err
}

func (d *DynamoDB) GetAutocloseTask(channelID string, kind model.TaskKind) (*model.AutocloseTask, error) {
	result, err := d.db.GetItem(context.TODO(), &dynamodb.GetItemInput{
		TableName: aws.String(autocloseTableName),
		Key:       taskKey(channelID, kind),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, nil
	}
	return itemToTask(result.Item)
}

func (d *DynamoDB) DeleteAutocloseTask(channelID string, kind model.TaskKind) error {
	_, err := d.db.DeleteItem(context.TODO(), &dynamodb.DeleteItemInput{
		TableName: aws.String(autocloseTableName),
		Key:       taskKey(channelID, kind),
	})
	return err
}

func (d *DynamoDB) GetAutocloseTasks() ([]model.AutocloseTask, error) {
	var tasks []model.AutocloseTask
	err := d.scan(&dynamodb.ScanInput{TableName: aws.String(autocloseTableName)}, func(item map[string]types.AttributeValue) error {
		t, err := itemToTask(item)
		if err != nil {
			return err
		}
		tasks = append(tasks, *t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].FireAt.Before(tasks[j].FireAt)
	})
	return tasks, nil
}

func (d *DynamoDB) scan(input *dynamodb.ScanInput, fn func(map[string]types.AttributeValue) error) error {
	for {
		out, err := d.db.Scan(context.TODO(), input)
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			if err := fn(item); err != nil {
				return err
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func taskKey(channelID string, kind model.TaskKind) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"channel_id": &types.AttributeValueMemberS{Value: channelID},
		"kind":       &types.AttributeValueMemberS{Value: string(kind)},
	}
}

func ticketToItem(t *model.Ticket) (map[string]types.AttributeValue, error) {
	lists := map[string]interface{}{
		"category_path": []string(t.CategoryPath),
		"questions":     []string(t.Questions),
		"answers":       []model.Answer(t.Answers),
		"participants":  []string(t.Participants),
	}
	item := map[string]types.AttributeValue{
		"channel_id":        &types.AttributeValueMemberS{Value: t.ChannelID},
		"number":            &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(t.Number), 10)},
		"guild_id":          &types.AttributeValueMemberS{Value: t.GuildID},
		"creator_id":        &types.AttributeValueMemberS{Value: t.CreatorID},
		"status":            &types.AttributeValueMemberS{Value: string(t.Status)},
		"phase":             &types.AttributeValueMemberS{Value: string(t.Phase)},
		"assigned_to":       &types.AttributeValueMemberS{Value: t.AssignedTo},
		"prompt_message_id": &types.AttributeValueMemberS{Value: t.PromptMessageID},
		"staff_thread_id":   &types.AttributeValueMemberS{Value: t.StaffThreadID},
		"created_at":        &types.AttributeValueMemberS{Value: t.CreatedAt.Format(time.RFC3339Nano)},
		"finalized_at":      &types.AttributeValueMemberS{Value: formatTimePtr(t.FinalizedAt)},
		"closed_at":         &types.AttributeValueMemberS{Value: formatTimePtr(t.ClosedAt)},
		"closed_by":         &types.AttributeValueMemberS{Value: t.ClosedBy},
		"close_reason":      &types.AttributeValueMemberS{Value: t.CloseReason},
	}
	for k, v := range lists {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", k, err)
		}
		item[k] = &types.AttributeValueMemberS{Value: string(b)}
	}
	return item, nil
}

func itemToTicket(item map[string]types.AttributeValue) (*model.Ticket, error) {
	number, err := getNumberValue(item, "number")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(getStringValue(item, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %v", err)
	}
	t := &model.Ticket{
		ChannelID:       getStringValue(item, "channel_id"),
		Number:          uint(number),
		GuildID:         getStringValue(item, "guild_id"),
		CreatorID:       getStringValue(item, "creator_id"),
		Status:          model.TicketStatus(getStringValue(item, "status")),
		Phase:           model.TicketPhase(getStringValue(item, "phase")),
		AssignedTo:      getStringValue(item, "assigned_to"),
		PromptMessageID: getStringValue(item, "prompt_message_id"),
		StaffThreadID:   getStringValue(item, "staff_thread_id"),
		CreatedAt:       createdAt,
		ClosedBy:        getStringValue(item, "closed_by"),
		CloseReason:     getStringValue(item, "close_reason"),
	}
	if t.FinalizedAt, err = parseTimePtr(getStringValue(item, "finalized_at")); err != nil {
		return nil, fmt.Errorf("failed to parse finalized_at: %v", err)
	}
	if t.ClosedAt, err = parseTimePtr(getStringValue(item, "closed_at")); err != nil {
		return nil, fmt.Errorf("failed to parse closed_at: %v", err)
	}
	lists := map[string]interface{ Scan(interface{}) error }{
		"category_path": &t.CategoryPath,
		"questions":     &t.Questions,
		"answers":       &t.Answers,
		"participants":  &t.Participants,
	}
	for k, dst := range lists {
		var src interface{}
		if v := getStringValue(item, k); v != "" {
			src = v
		}
		if err := dst.Scan(src); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func taskToItem(task *model.AutocloseTask) map[string]types.AttributeValue {
	item := taskKey(task.ChannelID, task.Kind)
	item["fire_at"] = &types.AttributeValueMemberS{Value: task.FireAt.Format(time.RFC3339Nano)}
	item["reason"] = &types.AttributeValueMemberS{Value: task.Reason}
	item["actor_id"] = &types.AttributeValueMemberS{Value: task.ActorID}
	item["created_at"] = &types.AttributeValueMemberS{Value: task.CreatedAt.Format(time.RFC3339Nano)}
	return item
}

func itemToTask(item map[string]types.AttributeValue) (*model.AutocloseTask, error) {
	fireAt, err := parseTime(getStringValue(item, "fire_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fire_at: %v", err)
	}
	createdAt, err := parseTime(getStringValue(item, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %v", err)
	}
	return &model.AutocloseTask{
		ChannelID: getStringValue(item, "channel_id"),
		Kind:      model.TaskKind(getStringValue(item, "kind")),
		FireAt:    fireAt,
		Reason:    getStringValue(item, "reason"),
		ActorID:   getStringValue(item, "actor_id"),
		CreatedAt: createdAt,
	}, nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func getStringValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getNumberValue(item map[string]types.AttributeValue, key string) (int, error) {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return strconv.Atoi(v.Value)
	}
	return 0, fmt.Errorf("failed to parse %s", key)
}
