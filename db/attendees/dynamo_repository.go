package attendees

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"kiosk/entity"
)

const (
	DefaultTableName = "EventUsers"
	DefaultTicketGSI = "TicketIdIndex"

	accessDeniedErrCode       = "AccessDeniedException"
	unrecognizedClientErrCode = "UnrecognizedClientException"
)

type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoRepository reads attendees from a table keyed by userId, with a
// global secondary index on ticketId.
type DynamoRepository struct {
	client    DynamoAPI
	tableName string
	ticketGSI string
}

func NewDynamoRepository(client DynamoAPI, tableName, ticketGSI string) *DynamoRepository {
	if client == nil {
		panic("client is nil")
	}
	if tableName == "" {
		tableName = DefaultTableName
	}
	if ticketGSI == "" {
		ticketGSI = DefaultTicketGSI
	}

	return &DynamoRepository{client: client, tableName: tableName, ticketGSI: ticketGSI}
}

func (r *DynamoRepository) GetByTicketID(ctx context.Context, ticketID string) (entity.Attendee, error) {
	resp, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.ticketGSI),
		KeyConditionExpression: aws.String("#tid = :tid"),
		ProjectionExpression:   aws.String("#uid, #tid, #name, #prof, checkedIn, checkedInAt"),
		ExpressionAttributeNames: map[string]string{
			"#uid":  "userId",
			"#tid":  "ticketId",
			"#name": "name",
			"#prof": "profession",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: ticketID},
		},
	})
	if err != nil {
		return entity.Attendee{}, fmt.Errorf("could not query attendee %s: %w", ticketID, mapDynamoError(err))
	}

	if len(resp.Items) == 0 {
		return entity.Attendee{}, fmt.Errorf("attendee with ticket %s: %w", ticketID, entity.ErrNotFound)
	}

	return attendeeFromItem(resp.Items[0]), nil
}

// MarkCheckedIn sets checkedIn with a condition, so only the first check-in
// of an attendee wins.
func (r *DynamoRepository) MarkCheckedIn(
	ctx context.Context,
	attendee entity.Attendee,
	now time.Time,
) (entity.Attendee, bool, error) {
	if attendee.UserID == "" {
		return entity.Attendee{}, false, fmt.Errorf("attendee with ticket %s has no userId", attendee.TicketID)
	}

	resp, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: attendee.UserID},
		},
		UpdateExpression:    aws.String("SET checkedIn = :true, checkedInAt = :now"),
		ConditionExpression: aws.String("attribute_not_exists(checkedIn) OR checkedIn = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":now":   &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return attendee, true, nil
	}
	if err != nil {
		return entity.Attendee{}, false, fmt.Errorf("could not check in attendee %s: %w", attendee.TicketID, mapDynamoError(err))
	}

	return attendeeFromItem(resp.Attributes), false, nil
}

func mapDynamoError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case accessDeniedErrCode, unrecognizedClientErrCode:
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), entity.ErrForbidden)
	default:
		return err
	}
}

func attendeeFromItem(item map[string]types.AttributeValue) entity.Attendee {
	attendee := entity.Attendee{
		UserID:     stringAttr(item["userId"]),
		TicketID:   stringAttr(item["ticketId"]),
		Name:       stringAttr(item["name"]),
		Profession: stringAttr(item["profession"]),
	}

	switch v := item["checkedIn"].(type) {
	case *types.AttributeValueMemberBOOL:
		attendee.CheckedIn = v.Value
	case *types.AttributeValueMemberS:
		attendee.CheckedIn, _ = strconv.ParseBool(v.Value)
	}

	if raw := stringAttr(item["checkedInAt"]); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			attendee.CheckedInAt = &ts
		}
	}

	return attendee
}

func stringAttr(value types.AttributeValue) string {
	switch v := value.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}
