package infra

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pyama86/ticketbot/domain/model"
	"github.com/stretchr/testify/assert"
)

func TestTicketItemMapping(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	closed := created.Add(time.Hour)
	in := &model.Ticket{
		ChannelID:    "chan",
		Number:       42,
		GuildID:      "guild",
		CreatorID:    "user",
		Status:       model.TicketClosed,
		Phase:        model.PhaseFinalized,
		CategoryPath: model.StringList{"Java", "Hub"},
		Questions:    model.StringList{"q1"},
		Answers:      model.AnswerList{{Question: "q1", Answer: "a1"}},
		Participants: model.StringList{"friend"},
		CreatedAt:    created,
		ClosedAt:     &closed,
		CloseReason:  "inactivity",
	}

	item, err := ticketToItem(in)
	assert.NoError(t, err)
	assert.Equal(t, "42", item["number"].(*types.AttributeValueMemberN).Value)

	out, err := itemToTicket(item)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestItemToTicket_MissingLists(t *testing.T) {
	item := map[string]types.AttributeValue{
		"channel_id": &types.AttributeValueMemberS{Value: "chan"},
		"number":     &types.AttributeValueMemberN{Value: "1"},
	}
	out, err := itemToTicket(item)
	assert.NoError(t, err)
	assert.Equal(t, model.StringList{}, out.CategoryPath)
	assert.Equal(t, model.AnswerList{}, out.Answers)
	assert.Nil(t, out.FinalizedAt)

	_, err = itemToTicket(map[string]types.AttributeValue{})
	assert.Error(t, err)
}

func TestTaskItemMapping(t *testing.T) {
	in := &model.AutocloseTask{
		ChannelID: "chan",
		Kind:      model.TaskQuestion,
		FireAt:    time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Reason:    "inactivity",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	out, err := itemToTask(taskToItem(in))
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}
